package config

type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota // No authentication
	SecurityPatron                      // Any valid access token
	SecurityStaff                       // Access token with the staff role
)

// EndpointSecurityConfig maps route names to their required security level.
// Routes missing from the map default to SecurityStaff.
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Public
	"auth.token": SecurityPublic,
	"healthz":    SecurityPublic,
	"metrics":    SecurityPublic,

	// Policy reads
	"policy.plans.list": SecurityPatron,
	"policy.plans.get":  SecurityPatron,

	// Patron content authoring
	"content.create":   SecurityPatron,
	"content.list":     SecurityPatron,
	"content.edit":     SecurityPatron,
	"content.delete":   SecurityPatron,
	"content.submit":   SecurityPatron,
	"content.resubmit": SecurityPatron,

	// Holds, own borrowings and own notifications
	"holds.place":               SecurityPatron,
	"holds.cancel":              SecurityPatron,
	"circulation.my_borrowings": SecurityPatron,
	"notifications.list":        SecurityPatron,
	"notifications.read":        SecurityPatron,
	"notifications.read_all":    SecurityPatron,

	// Circulation (staff)
	"circulation.checkout":      SecurityStaff,
	"circulation.renew":         SecurityStaff,
	"circulation.return":        SecurityStaff,
	"circulation.lost":          SecurityStaff,
	"circulation.borrowings":    SecurityStaff,
	"circulation.overdue":       SecurityStaff,
	"circulation.item.barcode":  SecurityStaff,
	"circulation.item.status":   SecurityStaff,
	"circulation.patron.status": SecurityStaff,

	// Moderation (staff)
	"moderation.queue":  SecurityStaff,
	"moderation.stats":  SecurityStaff,
	"moderation.action": SecurityStaff,
}

// RequiredLevel returns the security level for a route name.
func RequiredLevel(route string) SecurityLevel {
	if level, ok := EndpointSecurityConfig[route]; ok {
		return level
	}
	return SecurityStaff
}
