package constants

import (
	"github.com/go-playground/validator/v10"
)

type ContextKey string

const (
	PoolKey   ContextKey = "pool"
	TxKey     ContextKey = "tx"
	LoggerKey ContextKey = "logger"
)

// Validate is the shared validator instance. Field checks across the codebase
// (DTOs, importer row validation) go through this one so custom rules are
// registered in a single place.
var Validate = validator.New(validator.WithRequiredStructEnabled())
