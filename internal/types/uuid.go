package types

import (
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/teris-io/shortid"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex sub_0ujsswThIGTUYm2K8FjOOfXtY1K
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

var (
	sidGenerator *shortid.Shortid
	once         sync.Once
)

func initializeSID() {
	var err error
	sidGenerator, err = shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		panic("failed to initialize shortid generator: " + err.Error())
	}
}

// GenerateShortIDWithPrefix returns a short human-facing ID with a prefix,
// e.g. `ORD-X2QA91`. Used for order and invoice numbers, not primary keys.
func GenerateShortIDWithPrefix(prefix string) string {
	once.Do(initializeSID)

	id, err := sidGenerator.Generate()
	if err != nil {
		return ""
	}
	id = strings.ReplaceAll(id, "-", "")
	id = strings.ReplaceAll(id, "_", "")

	return strings.ToUpper(fmt.Sprintf("%s%s", prefix, id))
}

const (
	// Prefixes for all domains and entities

	UUID_PREFIX_SUBSCRIPTION       = "sub"
	UUID_PREFIX_INVOICE            = "inv"
	UUID_PREFIX_ORDER              = "ord"
	UUID_PREFIX_PAYMENT            = "pay"
	UUID_PREFIX_PAYMENT_METHOD     = "pm"
	UUID_PREFIX_WEBHOOK_EVENT      = "webhook"
	UUID_PREFIX_ENTITY             = "ent"
	UUID_PREFIX_PERMISSION         = "perm"
	UUID_PREFIX_PERMISSION_REQUEST = "preq"
	UUID_PREFIX_COUPON             = "cpn"
	UUID_PREFIX_REFERRAL           = "ref"
	UUID_PREFIX_COMMISSION         = "comm"
	UUID_PREFIX_PAYOUT             = "payout"
	UUID_PREFIX_PLAN_CHANGE        = "change"
)

const (
	SHORT_ID_PREFIX_ORDER   = "ORD-"
	SHORT_ID_PREFIX_INVOICE = "INV-"
)
