package version

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/petmood/internal/buildinfo"
)

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	cmd := Command(buildinfo.NewContext("1.2.3", "2026-10-01"))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "petmood 1.2.3 (built 2026-10-01)\n", out.String())
}
