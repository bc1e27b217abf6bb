package models

// All returns every model managed by AutoMigrate, in dependency order.
func All() []interface{} {
	return []interface{}{
		&Company{},
		&User{},
		&Equipment{},
		&TestingArea{},
		&EquipmentTest{},
		&Attachment{},
		&EquipmentLock{},
		&AuditEvent{},
	}
}
