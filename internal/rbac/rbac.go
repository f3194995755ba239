package rbac

type Role string
type Action string

const (
	RoleAdmin    Role = "admin"
	RoleClerk    Role = "clerk"
	RoleProvider Role = "provider"
	RoleClient   Role = "client"
)

const (
	ActionRead           Action = "read"
	ActionFillChecklist  Action = "fill_checklist"
	ActionManageBookings Action = "manage_bookings"
	ActionManageServices Action = "manage_services"
	ActionAdmin          Action = "admin"
)

// Can reports whether the role may perform the action at all. Ownership of a
// particular booking or service is checked by the caller.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleClerk:
		return action == ActionRead || action == ActionFillChecklist
	case RoleProvider:
		return action == ActionRead || action == ActionFillChecklist || action == ActionManageBookings || action == ActionManageServices
	case RoleClient:
		return action == ActionRead || action == ActionFillChecklist || action == ActionManageBookings
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleAdmin, RoleClerk, RoleProvider, RoleClient:
		return Role(role)
	default:
		return RoleClient
	}
}
