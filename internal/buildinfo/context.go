// Package buildinfo holds build-time metadata that is not part of user
// configuration.
package buildinfo

import (
	"fmt"

	"github.com/google/uuid"
)

// UnknownValue is reported for metadata that was not injected at build time.
const UnknownValue = "unknown"

// Context carries the version and build date injected by the linker, plus
// an id generated once per process.
type Context struct {
	version    string
	buildDate  string
	instanceID string
}

// NewContext creates a Context with a fresh instance id.
func NewContext(version, buildDate string) *Context {
	return &Context{
		version:    version,
		buildDate:  buildDate,
		instanceID: uuid.NewString(),
	}
}

// Version returns the build version or UnknownValue.
func (c *Context) Version() string {
	if c == nil || c.version == "" {
		return UnknownValue
	}
	return c.version
}

// BuildDate returns the build date or UnknownValue.
func (c *Context) BuildDate() string {
	if c == nil || c.buildDate == "" {
		return UnknownValue
	}
	return c.buildDate
}

// InstanceID identifies this process in health output and logs.
func (c *Context) InstanceID() string {
	if c == nil || c.instanceID == "" {
		return UnknownValue
	}
	return c.instanceID
}

func (c *Context) String() string {
	return fmt.Sprintf("petmood %s (built %s)", c.Version(), c.BuildDate())
}
