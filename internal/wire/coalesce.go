package wire

// CoalesceWidgetStates merges an older update into a newer one. The newer
// value wins, except that a true trigger in older is kept when newer still
// reports the same widget as a trigger, so a button press is not lost when
// two updates arrive before a rerun starts. Widgets only present in older are
// dropped.
func CoalesceWidgetStates(older, newer *WidgetStates) *WidgetStates {
	out := &WidgetStates{}
	if newer == nil {
		return out
	}
	index := make(map[string]int, len(newer.Widgets))
	for _, s := range newer.Widgets {
		if i, ok := index[s.ID]; ok {
			out.Widgets[i] = s
			continue
		}
		index[s.ID] = len(out.Widgets)
		out.Widgets = append(out.Widgets, s)
	}
	if older == nil {
		return out
	}
	for _, s := range older.Widgets {
		if s.Kind() != KindTrigger || !*s.TriggerValue {
			continue
		}
		i, ok := index[s.ID]
		if !ok || out.Widgets[i].Kind() != KindTrigger {
			continue
		}
		out.Widgets[i] = s
	}
	return out
}
