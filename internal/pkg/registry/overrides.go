package registry

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/linelogic/linelogic/internal/pkg/models"
)

// Override is one manual mapping entry. A canonical id that does not exist
// yet is valid: it materializes in the entity index on first use.
type Override struct {
	Provider         string            `yaml:"provider"`
	ProviderEntityID string            `yaml:"provider_entity_id"`
	CanonicalID      string            `yaml:"canonical_id"`
	Kind             models.EntityKind `yaml:"kind"`
}

type overridesFile struct {
	Overrides []Override `yaml:"overrides"`
}

// LoadOverridesFile reads the manual override list. A missing path is not an
// error; manual input is optional.
func LoadOverridesFile(path string) ([]Override, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read overrides file: %w", err)
	}

	var f overridesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse overrides file: %w", err)
	}
	return f.Overrides, nil
}

// ApplyOverrides loads manual mappings into the registry. Each one replaces
// any automatic mapping for its key and is permanently protected from
// automatic overwrite afterwards.
func (r *Registry) ApplyOverrides(ctx context.Context, overrides []Override) error {
	for _, o := range overrides {
		if o.Provider == "" || o.ProviderEntityID == "" || o.CanonicalID == "" {
			return fmt.Errorf("override missing provider, provider_entity_id or canonical_id")
		}
		kind := o.Kind
		if kind == "" {
			kind = models.KindEvent
		}
		m := models.ProviderMapping{
			Provider:         o.Provider,
			ProviderEntityID: o.ProviderEntityID,
			CanonicalID:      o.CanonicalID,
			Kind:             kind,
			Confidence:       1.0,
			Source:           models.SourceManual,
			MatchedVia:       "manual",
			CreatedAt:        r.now().UTC(),
		}
		if err := r.store.PutMapping(ctx, m); err != nil {
			return fmt.Errorf("failed to apply override %s/%s: %w", o.Provider, o.ProviderEntityID, err)
		}
		r.logger.Info("Applied manual override",
			"provider", o.Provider, "provider_entity_id", o.ProviderEntityID,
			"canonical_id", o.CanonicalID)
	}
	return nil
}

// ReloadOverrides re-reads the overrides file configured at construction.
func (r *Registry) ReloadOverrides(ctx context.Context) error {
	overrides, err := LoadOverridesFile(r.cfg.OverridesPath)
	if err != nil {
		return err
	}
	return r.ApplyOverrides(ctx, overrides)
}
