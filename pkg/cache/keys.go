package cache

import (
	"encoding/hex"
	"strconv"

	"lukechampine.com/blake3"

	"github.com/platinummonkey/apidelta/pkg/model"
)

// keyVersion prefixes every key. Bump it when the report format or the key layout
// changes so stale entries are never decoded.
const keyVersion = "v2"

// Subject names one comparison. Reports carry the baseline names, so two pairs with
// identical content still get separate entries.
type Subject struct {
	Before    string
	After     string
	BeforeFP  string
	AfterFP   string
	Component string
}

// Key identifies one comparison: the subject plus the options that change its outcome.
// Equal inputs always produce equal keys.
func Key(s Subject, visibility model.Visibility, includeMinor bool) string {
	if visibility == 0 {
		visibility = model.VisibilityAll
	}
	h := blake3.New(32, nil)
	for _, part := range []string{s.Before, s.After, s.BeforeFP, s.AfterFP, s.Component, visibility.String(), strconv.FormatBool(includeMinor)} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return keyVersion + ":" + hex.EncodeToString(h.Sum(nil))
}
