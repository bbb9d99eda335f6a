package constants

// PermissionRoles maps each permission to the roles allowed to perform it.
// Accepting an offer and signing a contract require contract-signing
// authority, which managers do not have.
var PermissionRoles = map[string][]string{
	ViewData:         {Viewer, Manager, Admin, Superadmin},
	CreateListing:    {Manager, Admin, Superadmin},
	NegotiateOffer:   {Manager, Admin, Superadmin},
	AcceptOffer:      {Admin, Superadmin},
	SignContract:     {Admin, Superadmin},
	CompleteContract: {Admin, Superadmin},
	RecordDelivery:   {Manager, Admin, Superadmin},
	ReviseDelivery:   {Admin, Superadmin},
}

// AllowedRole returns true if role is in the list of allowed roles for the permission.
func AllowedRole(permission, role string) bool {
	roles, ok := PermissionRoles[permission]
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
