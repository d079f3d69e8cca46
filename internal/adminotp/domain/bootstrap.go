package domain

// BootstrapData seeds the first admin account.
type BootstrapData struct {
	AdminEmail    string
	AdminPassword string
}
