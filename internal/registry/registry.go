// Package registry maps platform keys to client constructors and the
// configuration they require. The table is built once at startup and never
// mutated afterwards.
package registry

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"

	"crmsync/internal/client/hubspot"
	"crmsync/internal/crypto"
	"crmsync/internal/models"
	"crmsync/internal/remote"
)

const PlatformTypeCRM = "crm"

// Deps are the capabilities injected into every platform factory: the shared
// HTTP client, the retry-wrapping requester, and credential decryption.
type Deps struct {
	HTTPClient *http.Client
	Requester  *remote.Requester
	Decryptor  crypto.Decryptor
	Logger     *zap.Logger
}

type Factory func(deps Deps, config map[string]string) (remote.PlatformClient, error)

// Platform describes one supported external platform.
type Platform struct {
	Key            string   `json:"key"`
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	RequiredConfig []string `json:"required_config"`
	OptionalConfig []string `json:"optional_config"`
	DataTypes      []string `json:"data_types"`

	factory Factory
}

type UnsupportedPlatformError struct {
	Key string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform: %s", e.Key)
}

// MissingConfigError lists every absent required field, not just the first,
// so the caller can fix the whole configuration in one pass.
type MissingConfigError struct {
	Platform string
	Fields   []string
}

func (e *MissingConfigError) Error() string {
	return fmt.Sprintf("platform %s missing required configuration: %s", e.Platform, strings.Join(e.Fields, ", "))
}

type Registry struct {
	deps      Deps
	platforms map[string]Platform
}

func New(deps Deps) *Registry {
	r := &Registry{deps: deps, platforms: map[string]Platform{}}
	r.platforms[hubspot.PlatformName] = Platform{
		Key:            hubspot.PlatformName,
		Name:           "HubSpot",
		Type:           PlatformTypeCRM,
		RequiredConfig: []string{"api_key_encrypted"},
		OptionalConfig: []string{"base_url"},
		DataTypes: []string{
			models.EntityTypeContacts,
			models.EntityTypeCompanies,
			models.EntityTypeDeals,
		},
		factory: newHubSpotClient,
	}
	return r
}

// Create validates config and instantiates a client for the platform key.
func (r *Registry) Create(key string, config map[string]string) (remote.PlatformClient, error) {
	platform, ok := r.platforms[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return nil, &UnsupportedPlatformError{Key: key}
	}
	var missing []string
	for _, field := range platform.RequiredConfig {
		if strings.TrimSpace(config[field]) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingConfigError{Platform: platform.Key, Fields: missing}
	}
	return platform.factory(r.deps, config)
}

// Platforms returns every registered platform, sorted by key.
func (r *Registry) Platforms() []Platform {
	out := make([]Platform, 0, len(r.platforms))
	for _, p := range r.platforms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// PlatformsByType filters the registry by platform type.
func (r *Registry) PlatformsByType(platformType string) []Platform {
	out := make([]Platform, 0)
	for _, p := range r.Platforms() {
		if p.Type == platformType {
			out = append(out, p)
		}
	}
	return out
}

func newHubSpotClient(deps Deps, config map[string]string) (remote.PlatformClient, error) {
	blob := config["api_key_encrypted"]
	decryptor := deps.Decryptor
	credential := func() (string, error) {
		if decryptor == nil {
			return "", fmt.Errorf("no credential decryptor configured")
		}
		return decryptor.Decrypt(blob)
	}
	return hubspot.NewClient(deps.HTTPClient, config["base_url"], deps.Requester, credential), nil
}
