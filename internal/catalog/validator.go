package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

// resourcePathPattern is the expected shape of resource paths. Violations are
// warnings, not hard failures.
var resourcePathPattern = regexp.MustCompile(`^[a-z-]+$`)

// ValidationError reports a malformed catalog. It is fatal at boot: a process
// must refuse to start rather than run with a catalog that violates the
// naming convention or references missing dependencies.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("catalog validation failed:\n%s", strings.Join(e.Violations, "\n"))
}

// Validator runs the static checks over a catalog.
type Validator struct {
	catalog    *Catalog
	violations []string
	warnings   []string
}

// NewValidator creates a Validator for the given catalog.
func NewValidator(c *Catalog) *Validator {
	return &Validator{catalog: c}
}

// Validate runs all checks. Duplicate names, malformed name/category/action
// shapes, and unresolved dependencies are fatal; resource-path shape
// violations are collected as warnings, retrievable via Warnings.
func (v *Validator) Validate() error {
	v.validateUniqueNames()
	v.validateShapes()
	v.validateDependencies()
	v.validateResourcePaths()

	if len(v.violations) > 0 {
		return &ValidationError{Violations: v.violations}
	}
	return nil
}

// Warnings returns non-fatal findings from the last Validate call.
func (v *Validator) Warnings() []string {
	return v.warnings
}

func (v *Validator) validateUniqueNames() {
	seen := make(map[string]bool)
	for _, def := range v.catalog.ListAll() {
		if seen[def.Name] {
			v.violations = append(v.violations, fmt.Sprintf("duplicate permission name: %s", def.Name))
		}
		seen[def.Name] = true
	}
}

func (v *Validator) validateShapes() {
	for _, def := range v.catalog.ListAll() {
		if err := def.Validate(); err != nil {
			v.violations = append(v.violations, err.Error())
		}
	}
}

func (v *Validator) validateDependencies() {
	for _, def := range v.catalog.ListAll() {
		for _, dep := range def.Dependencies {
			if _, ok := v.catalog.Find(dep); !ok {
				v.violations = append(v.violations, fmt.Sprintf("permission %s: dependency %s does not exist", def.Name, dep))
			}
		}
	}
}

func (v *Validator) validateResourcePaths() {
	for _, def := range v.catalog.ListAll() {
		if !resourcePathPattern.MatchString(def.ResourcePath) {
			v.warnings = append(v.warnings, fmt.Sprintf("permission %s: resource path %q does not match ^[a-z-]+$", def.Name, def.ResourcePath))
		}
	}
}
