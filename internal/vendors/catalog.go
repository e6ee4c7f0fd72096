package vendors

// Animals and colors give 14 x 18 = 252 distinct identities.
var (
	animals = []string{
		"Alligator", "Beaver", "Camel", "Dolphin", "Elephant", "Fox", "Giraffe",
		"Hedgehog", "Koala", "Lemur", "Narwhal", "Otter", "Panda", "Raccoon",
	}

	colors = []struct {
		Name string
		Hex  string
	}{
		{"Amber", "#ffbf00"},
		{"Azure", "#007fff"},
		{"Coral", "#ff7f50"},
		{"Crimson", "#dc143c"},
		{"Cyan", "#00bcd4"},
		{"Emerald", "#2ecc71"},
		{"Fuchsia", "#c2185b"},
		{"Golden", "#f1c40f"},
		{"Indigo", "#3f51b5"},
		{"Jade", "#00a86b"},
		{"Lavender", "#9575cd"},
		{"Lime", "#8bc34a"},
		{"Magenta", "#e91e63"},
		{"Olive", "#808000"},
		{"Orange", "#ff9800"},
		{"Ruby", "#e0115f"},
		{"Silver", "#9e9e9e"},
		{"Teal", "#009688"},
	}
)

// Identity is the display identity of a counterparty.
type Identity struct {
	Name    string `json:"name"`
	IconURL string `json:"iconUrl"`
	Color   string `json:"color"`
}

// Catalog returns every identity, animals major.
func Catalog() []Identity {
	out := make([]Identity, 0, len(animals)*len(colors))
	for _, a := range animals {
		for _, c := range colors {
			out = append(out, Identity{
				Name:    c.Name + " " + a,
				IconURL: "assets/vendors/" + a + ".png",
				Color:   c.Hex,
			})
		}
	}
	return out
}

// CatalogSize is the number of distinct identities.
var CatalogSize = len(animals) * len(colors)
