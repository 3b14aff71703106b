package widgets

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/gowebpki/jcs"
	"github.com/pkg/errors"

	"github.com/joeycumines/rerun/internal/sessionstate"
	"github.com/joeycumines/rerun/internal/stateaccess"
)

// ComputeWidgetID returns userKey if set, otherwise a deterministic id under
// the generated prefix. A user key inside the generated namespace is refused.
// The generated id hashes the widget kind, the declaration and the enclosing
// form, so identical declarations collide and any change to a label, default
// or option list yields a new widget.
//
// decl must marshal to JSON and must not carry the id or any value fields.
func ComputeWidgetID(kind string, decl any, formID string, userKey string) (string, error) {
	if userKey != "" {
		if err := stateaccess.ValidateKey(userKey); err != nil {
			return "", err
		}
		return userKey, nil
	}

	tempData, err := json.Marshal(struct {
		Kind        string `json:"kind"`
		Declaration any    `json:"declaration"`
		FormID      string `json:"form_id,omitempty"`
	}{kind, decl, formID})
	if err != nil {
		return "", errors.Wrapf(err, "failed to marshal %s declaration for hashing", kind)
	}

	// key order and number formatting must not affect the id
	data, err := jcs.Transform(tempData)
	if err != nil {
		return "", errors.Wrapf(err, "failed to canonicalize %s declaration for hashing", kind)
	}

	hash := sha256.Sum256(data)
	return sessionstate.GeneratedWidgetKeyPrefix + "-" + hex.EncodeToString(hash[:]), nil
}
