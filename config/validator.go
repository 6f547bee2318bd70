package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/notargets/DGCoupling/mesh"
	"github.com/notargets/DGCoupling/partitions"
	"github.com/sirupsen/logrus"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config key, e.g. "coupling.group1"
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

func ValidTransports() []string {
	return []string{"local", "websocket"}
}

func ValidLogFormats() []string {
	return []string{"text", "json"}
}

// Validate checks the Config and returns every validation error found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError
	errors = append(errors, c.validateCoupling()...)
	errors = append(errors, c.validateMesh()...)
	errors = append(errors, c.validateTransport()...)
	errors = append(errors, c.validateRun()...)
	errors = append(errors, c.validateLog()...)
	return errors
}

func (c *Config) validateCoupling() []ValidationError {
	var errors []ValidationError
	cc := c.Coupling

	if cc.Name == "" {
		errors = append(errors, ValidationError{
			Field:   "coupling.name",
			Value:   cc.Name,
			Message: "must not be empty",
		})
	}
	for key, group := range map[string][]int{"coupling.group1": cc.Group1, "coupling.group2": cc.Group2} {
		if len(group) == 0 {
			errors = append(errors, ValidationError{Field: key, Value: group, Message: "must not be empty"})
		}
	}

	// Together the groups must number the world 0..n-1 exactly once
	all := append(slices.Clone(cc.Group1), cc.Group2...)
	slices.Sort(all)
	for i, r := range all {
		if r != i {
			errors = append(errors, ValidationError{
				Field:   "coupling.group2",
				Value:   all,
				Message: fmt.Sprintf("groups must together hold ranks 0..%d once each", len(all)-1),
			})
			break
		}
	}

	if cc.KNearest < 1 {
		errors = append(errors, ValidationError{
			Field:   "coupling.k_nearest",
			Value:   cc.KNearest,
			Message: "must be at least 1",
		})
	}
	if cc.Tolerance < 0 {
		errors = append(errors, ValidationError{
			Field:   "coupling.tolerance",
			Value:   cc.Tolerance,
			Message: "must be non-negative",
		})
	}
	if cc.MaxDistance < 0 {
		errors = append(errors, ValidationError{
			Field:   "coupling.max_distance",
			Value:   cc.MaxDistance,
			Message: "must be non-negative",
		})
	}
	return errors
}

func (c *Config) validateMesh() []ValidationError {
	var errors []ValidationError
	mc := c.Mesh

	if mc.File == "" {
		if mc.Nx < 1 {
			errors = append(errors, ValidationError{
				Field:   "mesh.nx",
				Value:   mc.Nx,
				Message: "must be at least 1 when no mesh file is given",
			})
		}
		if mc.Ny < 0 || mc.Nz < 0 || (mc.Ny == 0 && mc.Nz > 0) {
			errors = append(errors, ValidationError{
				Field:   "mesh.nz",
				Value:   fmt.Sprintf("%dx%d", mc.Ny, mc.Nz),
				Message: "ny and nz must be non-negative and nz needs ny",
			})
		}
	}
	if _, err := mesh.NewSelector(mc.Predicate); err != nil {
		errors = append(errors, ValidationError{
			Field:   "mesh.predicate",
			Value:   mc.Predicate,
			Message: err.Error(),
		})
	}
	if _, err := partitions.ParseStrategy(mc.Strategy); err != nil {
		errors = append(errors, ValidationError{
			Field:   "mesh.strategy",
			Value:   mc.Strategy,
			Message: "must be one of: block, roundrobin, sfc, mesh",
		})
	}
	return errors
}

func (c *Config) validateTransport() []ValidationError {
	var errors []ValidationError
	tc := c.Transport

	if !slices.Contains(ValidTransports(), tc.Kind) {
		errors = append(errors, ValidationError{
			Field:   "transport.kind",
			Value:   tc.Kind,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidTransports(), ", ")),
		})
		return errors
	}
	if tc.Kind != "websocket" {
		return errors
	}
	if len(tc.Peers) != c.WorldSize() {
		errors = append(errors, ValidationError{
			Field:   "transport.peers",
			Value:   len(tc.Peers),
			Message: fmt.Sprintf("must list one address per rank (%d)", c.WorldSize()),
		})
	}
	if tc.Rank < 0 || tc.Rank >= c.WorldSize() {
		errors = append(errors, ValidationError{
			Field:   "transport.rank",
			Value:   tc.Rank,
			Message: fmt.Sprintf("must be in [0, %d)", c.WorldSize()),
		})
	}
	if tc.RunID == "" {
		errors = append(errors, ValidationError{
			Field:   "transport.run_id",
			Value:   tc.RunID,
			Message: "must be shared by every rank of a websocket run",
		})
	}
	return errors
}

func (c *Config) validateRun() []ValidationError {
	if c.Run.Steps < 1 {
		return []ValidationError{{
			Field:   "run.steps",
			Value:   c.Run.Steps,
			Message: "must be at least 1",
		}}
	}
	return nil
}

func (c *Config) validateLog() []ValidationError {
	var errors []ValidationError
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errors = append(errors, ValidationError{
			Field:   "log.level",
			Value:   c.Log.Level,
			Message: err.Error(),
		})
	}
	if !slices.Contains(ValidLogFormats(), c.Log.Format) {
		errors = append(errors, ValidationError{
			Field:   "log.format",
			Value:   c.Log.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogFormats(), ", ")),
		})
	}
	return errors
}
