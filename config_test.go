package consteval

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[defines]
"app.flavor" = "beta"
"app.port"   = "8080"
debug        = "true"

[features]
report-unselected-branch = true
`

func Test_Config_Parse(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "beta", cfg.Defines["app.flavor"])
	assert.Equal(t, "8080", cfg.Defines["app.port"])
	assert.Equal(t, "true", cfg.Defines["debug"])
	assert.True(t, cfg.EvalFeatures().ReportUnselectedBranch)
}

func Test_Config_EmptyFileIsValid(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.NotNil(t, cfg.Defines)
	assert.False(t, cfg.EvalFeatures().ReportUnselectedBranch)
}

func Test_Config_BadTOML(t *testing.T) {
	_, err := ParseConfig([]byte("defines = [broken"))
	assert.Error(t, err)
}

func Test_Config_LoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defines.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "beta", cfg.Defines["app.flavor"])

	_, err = LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func Test_Config_DrivesEvaluation(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	v, c := testEval(t, `(str (env-string "app.flavor") "-" (env-int "app.port"))`, cfg.Defines)
	require.False(t, c.HasErrors(), "diags: %v", c.Diags)
	wantString(t, v, "beta-8080")
}
