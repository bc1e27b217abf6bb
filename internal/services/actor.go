package services

import "github.com/Wikid82/equiptrack/internal/models"

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID    uint
	CompanyID uint
	Role      models.Role
	Name      string
	IP        string
}

// ActorFromUser builds an Actor for u.
func ActorFromUser(u *models.User, ip string) Actor {
	return Actor{
		UserID:    u.ID,
		CompanyID: u.CompanyID,
		Role:      u.Role,
		Name:      u.Name,
		IP:        ip,
	}
}
