package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/glimte/streamgen/contracts"
)

// ProvisioningError reports a stream that could not be brought into its
// required shape. Publishing must not start after one.
type ProvisioningError struct {
	Stream    string
	Op        string
	Err       error
	Timestamp time.Time
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning error: %s stream %s: %v", e.Op, e.Stream, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// Provisioner resets and declares streams. Running it twice with the same
// specs leaves the broker in the same state as running it once.
type Provisioner struct {
	topology StreamTopology
	logger   *slog.Logger
}

// ProvisionerOption configures the Provisioner
type ProvisionerOption func(*Provisioner)

// WithProvisionerLogger sets the logger
func WithProvisionerLogger(logger *slog.Logger) ProvisionerOption {
	return func(p *Provisioner) {
		p.logger = logger
	}
}

// NewProvisioner creates a new provisioner
func NewProvisioner(topology StreamTopology, options ...ProvisionerOption) *Provisioner {
	p := &Provisioner{
		topology: topology,
		logger:   slog.Default(),
	}

	for _, opt := range options {
		opt(p)
	}

	return p
}

// Run deletes then declares every stream in specs. Delete failures are
// ignored; the first declare failure aborts the run. Streams handled before
// the failure stay provisioned.
func (p *Provisioner) Run(ctx context.Context, specs []contracts.StreamSpec) error {
	if err := contracts.ValidateStreamSpecs(specs); err != nil {
		return &ProvisioningError{Op: "validate", Err: err, Timestamp: time.Now()}
	}

	for _, spec := range specs {
		if err := p.topology.DeleteStream(ctx, spec.Name); err != nil {
			p.logger.Debug("ignoring delete failure", "stream", spec.Name, "error", err)
		}

		if err := p.topology.DeclareStream(ctx, spec.Name); err != nil {
			return &ProvisioningError{Stream: spec.Name, Op: "declare", Err: err, Timestamp: time.Now()}
		}

		p.logger.Info("stream provisioned", "stream", spec.Name)
	}

	return nil
}

// Verify checks that every stream in specs exists
func (p *Provisioner) Verify(ctx context.Context, specs []contracts.StreamSpec) error {
	for _, spec := range specs {
		info, err := p.topology.InspectStream(ctx, spec.Name)
		if err != nil {
			return &ProvisioningError{Stream: spec.Name, Op: "verify", Err: err, Timestamp: time.Now()}
		}
		p.logger.Debug("stream verified", "stream", info.Name, "messages", info.Messages, "consumers", info.Consumers)
	}
	return nil
}
