package commands

import (
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/rpa/internal/gateway"
	"github.com/slok/rpa/internal/gateway/cdp"
	"github.com/slok/rpa/internal/gateway/fake"
	"github.com/slok/rpa/internal/log"
)

const (
	gatewayTypeCDP  = "cdp"
	gatewayTypeFake = "fake"
)

// gatewayFlags are the session gateway flags shared by the commands that execute tasks.
type gatewayFlags struct {
	gatewayType   string
	execPath      string
	launchTimeout time.Duration
}

func registerGatewayFlags(cmd *kingpin.CmdClause) *gatewayFlags {
	f := &gatewayFlags{}

	cmd.Flag("gateway", "Browser session gateway (cdp, fake).").Default(gatewayTypeCDP).EnumVar(&f.gatewayType, gatewayTypeCDP, gatewayTypeFake)
	cmd.Flag("exec-path", "Browser executable, discovered from the browser name when missing.").StringVar(&f.execPath)
	cmd.Flag("launch-timeout", "Max time waiting for the browser debugging port.").Default("15s").DurationVar(&f.launchTimeout)

	return f
}

// newGateway creates the session gateway selected by the flags. The fake gateway
// simulates a page where every selector exists, useful to dry-run templates.
func newGateway(f gatewayFlags, logger log.Logger) (gateway.Gateway, error) {
	switch f.gatewayType {
	case gatewayTypeFake:
		gw, err := fake.NewGateway(fake.GatewayConfig{
			AllSelectorsPresent: true,
			Latency:             50 * time.Millisecond,
			Logger:              logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create fake gateway: %w", err)
		}
		return gw, nil
	default:
		gw, err := cdp.NewGateway(cdp.GatewayConfig{
			ExecPath:      f.execPath,
			LaunchTimeout: f.launchTimeout,
			Logger:        logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create CDP gateway: %w", err)
		}
		return gw, nil
	}
}
