package app

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/lunavoice/luna/internal/app"

var logger = otelslog.NewLogger(scopeName)
