package flags

import (
	"testing"
	"time"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// TestOptionalFlagsDontSetRequired asserts that all flags deemed optional set
// the Required field to false.
func TestOptionalFlagsDontSetRequired(t *testing.T) {
	for _, flag := range optionalFlags {
		reqFlag, ok := flag.(cli.RequiredFlag)
		require.True(t, ok)
		require.False(t, reqFlag.IsRequired())
	}
}

// TestUniqueFlags asserts that all flag names are unique, to avoid accidental conflicts between the many flags.
func TestUniqueFlags(t *testing.T) {
	seenCLI := make(map[string]struct{})
	for _, flag := range Flags {
		name := flag.Names()[0]
		if _, ok := seenCLI[name]; ok {
			t.Errorf("duplicate flag %s", name)
			continue
		}
		seenCLI[name] = struct{}{}
	}
}

func TestHasEnvVar(t *testing.T) {
	for _, flag := range Flags {
		flagName := flag.Names()[0]

		t.Run(flagName, func(t *testing.T) {
			envFlagGetter, ok := flag.(interface {
				GetEnvVars() []string
			})
			envFlags := envFlagGetter.GetEnvVars()
			require.True(t, ok, "must be able to cast the flag to an EnvVar interface")
			require.Equal(t, 1, len(envFlags), "flags should have exactly one env var")
		})
	}
}

func TestEnvVarFormat(t *testing.T) {
	for _, flag := range Flags {
		flagName := flag.Names()[0]

		t.Run(flagName, func(t *testing.T) {
			envFlagGetter, ok := flag.(interface {
				GetEnvVars() []string
			})
			envFlags := envFlagGetter.GetEnvVars()
			require.True(t, ok, "must be able to cast the flag to an EnvVar interface")
			require.Equal(t, 1, len(envFlags), "flags should have exactly one env var")

			expectedEnvVar := opservice.FlagNameToEnvVarName(flagName, EnvVarPrefix)
			require.Equal(t, expectedEnvVar, envFlags[0])
		})
	}
}

func TestDurationFlagDefaults(t *testing.T) {
	assert.Equal(t, 2*time.Second, DefaultTimeout.Value)
	assert.Equal(t, 75*time.Millisecond, DefaultSlow.Value)
	assert.Equal(t, time.Duration(0), RunInterval.Value)
}

func TestConfigFileFlag(t *testing.T) {
	testCases := []struct {
		name          string
		args          []string
		expectedValue string
	}{
		{"with config file", []string{"app", "--config", "harness.yaml"}, "harness.yaml"},
		{"no flag uses default empty", []string{"app"}, ""},
		{"with file path", []string{"app", "--config", "/etc/harness/overrides.yaml"}, "/etc/harness/overrides.yaml"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			app := &cli.App{
				Flags: []cli.Flag{ConfigFile},
				Action: func(ctx *cli.Context) error {
					value := ctx.String(ConfigFile.Name)
					assert.Equal(t, tc.expectedValue, value)
					return nil
				},
			}

			err := app.Run(tc.args)
			assert.NoError(t, err)
		})
	}
}
