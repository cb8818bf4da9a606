package theme

// Seasonal palette for the configuration panel. Semantic roles (success,
// warning, error) keep the default colors.
//
//	GUILDPANEL_THEME=halloween
func init() {
	MustRegister(&Theme{
		Name:          "halloween",
		Primary:       0x5865F2,
		PanelHome:     0xEB6123, // Pumpkin
		PanelCategory: 0x8E44AD, // Purple
		PanelSubView:  0xEB6123,
		PanelEditor:   0xF28B82, // Pastel red
	})
}
