package particle

import (
	"context"
	"errors"
	"net/http"

	"github.com/nerrad567/keg-monitor-core/internal/device"
	"github.com/nerrad567/keg-monitor-core/internal/provider"
)

// Capability implements provider.Capability for every Particle model.
type Capability struct {
	client     *Client
	translator *provider.Translator
	logger     provider.Logger
}

// NewCapability wires a client to a translator preloaded with FirmwareErrors.
func NewCapability(client *Client) *Capability {
	tr := provider.NewTranslator()
	for fn, table := range FirmwareErrors {
		tr.Register(fn, table)
	}
	return &Capability{client: client, translator: tr, logger: noopLogger{}}
}

// Register installs c as the Particle default capability.
func Register(reg *provider.Registry, c *Capability) {
	reg.Register(ProviderName, provider.DefaultModel, c)
}

// SetLogger sets the logger for the capability.
func (c *Capability) SetLogger(logger provider.Logger) {
	c.logger = logger
}

// Translator exposes the firmware error tables so more can be registered.
func (c *Capability) Translator() *provider.Translator {
	return c.translator
}

// Supports reports whether op is implemented.
func (c *Capability) Supports(op provider.Operation) bool {
	if op.IsRead() || op == provider.OpPing {
		return true
	}
	_, ok := FunctionFor(op)
	return ok
}

// Get serves the read family.
func (c *Capability) Get(ctx context.Context, op provider.Operation, dev *device.Device, _ ...string) *provider.Outcome {
	switch op {
	case provider.OpSupportsStatusCheck:
		return &provider.Outcome{Data: c.client.Enabled()}
	case provider.OpGetDetails:
		details := c.details(ctx, dev)
		if details == nil {
			return nil
		}
		return &provider.Outcome{Data: details}
	case provider.OpGetDescription:
		details := c.details(ctx, dev)
		if details == nil {
			return nil
		}
		name, _ := details["name"].(string)
		return &provider.Outcome{Data: name}
	case provider.OpOnline:
		online := false
		if details := c.details(ctx, dev); details != nil {
			online, _ = details["online"].(bool)
		}
		return &provider.Outcome{Data: online}
	default:
		return nil
	}
}

// Run invokes the firmware function behind op. The first arg, when given,
// is passed as the function argument.
func (c *Capability) Run(ctx context.Context, op provider.Operation, dev *device.Device, args ...string) *provider.Outcome {
	if op == provider.OpPing {
		return c.ping(ctx, dev)
	}
	fn, ok := FunctionFor(op)
	if !ok {
		return nil
	}
	var arg string
	if len(args) > 0 {
		arg = args[0]
	}

	status, data, err := c.client.Call(ctx, dev.ChipID, fn, arg)
	if err != nil {
		return c.failure(fn, dev, err)
	}
	if status != http.StatusOK {
		c.logger.Warn("particle function call rejected", "function", fn, "chip_id", dev.ChipID, "status", status)
		return nil
	}

	rv, ok := intValue(data["return_value"])
	if !ok {
		c.logger.Warn("particle response has no return_value", "function", fn, "chip_id", dev.ChipID)
		return nil
	}
	return c.translator.Outcome(fn, rv)
}

func (c *Capability) ping(ctx context.Context, dev *device.Device) *provider.Outcome {
	status, data, err := c.client.Post(ctx, dev.ChipID, "/ping", nil)
	if err != nil {
		if isGuardError(err) {
			return nil
		}
		return &provider.Outcome{Data: false}
	}
	online := false
	if status == http.StatusOK {
		online, _ = data["online"].(bool)
	}
	return &provider.Outcome{Data: online}
}

// details returns the cloud's device record, or nil on any failure.
func (c *Capability) details(ctx context.Context, dev *device.Device) map[string]any {
	status, data, err := c.client.Get(ctx, dev.ChipID, "")
	if err != nil {
		if !isGuardError(err) {
			c.logger.Error("fetching particle device details", "chip_id", dev.ChipID, "error", err)
		}
		return nil
	}
	if status != http.StatusOK {
		return nil
	}
	return data
}

// failure maps a client error to an outcome. Guard errors mean "no answer".
func (c *Capability) failure(fn string, dev *device.Device, err error) *provider.Outcome {
	if isGuardError(err) {
		return nil
	}
	c.logger.Error("particle function call failed", "function", fn, "chip_id", dev.ChipID, "error", err)
	return &provider.Outcome{
		ErrorMessage: "Unable to reach the device cloud",
		HTTPStatus:   http.StatusFailedDependency,
	}
}

func isGuardError(err error) bool {
	return errors.Is(err, provider.ErrDisabled) || errors.Is(err, provider.ErrNotConfigured)
}

// intValue accepts the float64 that encoding/json produces for numbers.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
