package state

import (
	"maps"

	"github.com/bitlum/cli/internal/denomination"
	"github.com/bitlum/cli/internal/storage"
	"github.com/bitlum/cli/internal/store"
	"github.com/bitlum/cli/pkg/util"
)

// DenominationChoice is the pair of denominations payments of an asset are
// shown in.
type DenominationChoice struct {
	Main       string `json:"main" yaml:"main"`
	Additional string `json:"additional,omitempty" yaml:"additional,omitempty"`
}

// SettingsData is what the settings store persists.
type SettingsData struct {
	Denominations         map[string]DenominationChoice `json:"denominations,omitempty"`
	NotificationsDisabled bool                          `json:"notificationsDisabled,omitempty"`
}

// Settings are local preferences. They are never fetched.
type Settings struct {
	Local *store.Store[SettingsData]

	catalog denomination.Catalog
}

func newSettings(deps Deps, changed func()) *Settings {
	s := &Settings{catalog: deps.Catalog}
	s.Local = store.New(store.Config[SettingsData]{
		Name:        "settings",
		Storage:     deps.Storage,
		StorageKey:  storage.KeySettings,
		AfterUpdate: func(SettingsData, bool) { changed() },
		Logger:      deps.Logger,
		Now:         deps.Now,
	})
	return s
}

// Current returns the stored settings.
func (s *Settings) Current() SettingsData {
	data, _ := s.Local.Data()
	return data
}

// Catalog returns the denominations available for selection.
func (s *Settings) Catalog() denomination.Catalog {
	return s.catalog
}

// Choice returns the denominations payments of asset are shown in. Without a
// stored choice the asset itself is the main denomination and SAT, when the
// asset has it, the additional one.
func (s *Settings) Choice(asset string) DenominationChoice {
	if c, ok := s.Current().Denominations[asset]; ok && c.Main != "" {
		return c
	}
	c := DenominationChoice{Main: asset}
	if _, ok := s.catalog.Lookup(asset, denomination.SAT); ok {
		c.Additional = denomination.SAT
	}
	return c
}

// Denominations resolves the choice for asset into denominations. Names the
// catalog does not know fall back to the raw asset amount.
func (s *Settings) Denominations(asset string) (main, additional denomination.Denomination, hasAdditional bool) {
	c := s.Choice(asset)
	main, ok := s.catalog.Lookup(asset, c.Main)
	if !ok {
		main = denomination.Fallback(asset)
	}
	if c.Additional == "" {
		return main, denomination.Denomination{}, false
	}
	additional, hasAdditional = s.catalog.Lookup(asset, c.Additional)
	return main, additional, hasAdditional
}

// SetDenomination stores the choice for asset. Both names must be in the
// catalog; additional may be empty.
func (s *Settings) SetDenomination(asset, main, additional string) error {
	if asset == "" || main == "" {
		return util.MissingParameter()
	}
	for _, name := range []string{main, additional} {
		if name == "" {
			continue
		}
		if _, ok := s.catalog.Lookup(asset, name); !ok {
			return util.NewCodedError(util.CodeBadRequest, "Unknown denomination "+name+" for "+asset)
		}
	}
	s.Local.Apply(store.Patch(func(d *SettingsData) {
		choices := maps.Clone(d.Denominations)
		if choices == nil {
			choices = map[string]DenominationChoice{}
		}
		choices[asset] = DenominationChoice{Main: main, Additional: additional}
		d.Denominations = choices
	}))
	return nil
}

// SetNotifications turns payment notifications on or off.
func (s *Settings) SetNotifications(enabled bool) {
	s.Local.Apply(store.Patch(func(d *SettingsData) {
		d.NotificationsDisabled = !enabled
	}))
}

// NotificationsEnabled reports whether payment notifications are shown.
func (s *Settings) NotificationsEnabled() bool {
	return !s.Current().NotificationsDisabled
}
