package store

// Setting names for the key-value profile store. These mirror the keys the
// mobile client kept in its preference files.
const (
	SettingUsername           = "username"
	SettingPassword           = "password" // bcrypt hash, never the clear text
	SettingEmail              = "email"
	SettingIsLoggedIn         = "is_logged_in"
	SettingPetName            = "pet_name"
	SettingPetNameJustChanged = "pet_name_just_changed_flag"
	SettingAPIKey             = "api_key"
	SettingAPIEndpoint        = "api_endpoint"
)

// ProfileSetting is one key-value row of locally persisted user state.
type ProfileSetting struct {
	Name  string
	Value string
}

type FindProfileSetting struct {
	Name *string
}

type DeleteProfileSetting struct {
	Name string
}
