package main

import (
	"context"
	"davisweb/cmd/davisweb/commands"
	"davisweb/lib/telemetry"
	"davisweb/lib/util/serviceutil"
)

func main() {
	telemetry.SetupFromEnv(context.Background(), "davisweb")
	telemetry.InitSlog(true)
	// Ctrl+C abandons a pending pass-time wait instead of killing a
	// registration request mid-flight
	ctx := serviceutil.SignalContext()
	telemetry.InstrumentPerfStats(ctx)
	commands.ExecuteContext(ctx)
}
