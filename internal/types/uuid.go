package types

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/teris-io/shortid"
)

const (
	UUID_PREFIX_ENTITLEMENT = "ent"
	UUID_PREFIX_ROLLOVER    = "roll"
	UUID_PREFIX_FEATURE     = "feat"
	UUID_PREFIX_PRICE       = "price"
	UUID_PREFIX_CUSTOMER    = "cus"
	UUID_PREFIX_PRODUCT     = "prod"
	UUID_PREFIX_EVENT       = "event"
	UUID_PREFIX_LINE_ITEM   = "li"
	UUID_PREFIX_ALERT       = "alert"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	ms := ulid.Timestamp(time.Now())
	return strings.ToLower(ulid.MustNew(ms, entropy).String())
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a given prefix ex cus_0ujsswThIGTUYm2K8FjOOfXtY1K
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

// GenerateShortIDWithPrefix returns a short unique identifier with a prefix,
// used for idempotency suffixes where a full ULID is overkill.
func GenerateShortIDWithPrefix(prefix string) string {
	id, err := shortid.Generate()
	if err != nil {
		return GenerateUUIDWithPrefix(prefix)
	}
	return fmt.Sprintf("%s%s", prefix, id)
}
