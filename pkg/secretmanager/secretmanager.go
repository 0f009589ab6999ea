package secretmanager

import (
	"os"

	vault "github.com/hashicorp/vault-client-go"
	"go.uber.org/fx"
)

// Module provides a Vault client configured from VAULT_ADDR / VAULT_TOKEN.
// config.LoadConfig picks it up as an optional dependency and overlays database and redis credentials.
var Module = fx.Module("secretmanager", fx.Provide(ProvideVault))

// Enabled reports whether the process environment points at a Vault server.
func Enabled() bool {
	_, ok := os.LookupEnv("VAULT_ADDR")
	return ok
}

func ProvideVault() (*vault.Client, error) {
	client, err := vault.New(
		vault.WithEnvironment(),
	)
	if err != nil {
		return nil, err
	}

	return client, nil
}
