package services

import "github.com/SAP-F-2025/learner-service/internal/models"

// Operation names a gated action
type Operation string

const (
	OpCreateUser     Operation = "create_user"
	OpViewUser       Operation = "view_user"
	OpUpdateProfile  Operation = "update_profile"
	OpRepairUser     Operation = "repair_user"
	OpRecordAttempt  Operation = "record_attempt"
	OpCompleteLesson Operation = "complete_lesson"
	OpViewProgress   Operation = "view_progress"
	OpExportProgress Operation = "export_progress"
	OpReconcile      Operation = "reconcile"
)

// Policy is the role requirement of an operation. AllowSelf lets a user act
// on its own resources without holding any of the roles.
type Policy struct {
	Roles     []string
	AllowSelf bool
}

var learnerRoles = []string{models.RoleStudent, models.RoleTeacher, models.RoleAdmin}

var policies = map[Operation]Policy{
	OpCreateUser:     {Roles: []string{models.RoleAdmin}},
	OpViewUser:       {Roles: []string{models.RoleTeacher, models.RoleAdmin}, AllowSelf: true},
	OpUpdateProfile:  {Roles: []string{models.RoleAdmin}, AllowSelf: true},
	OpRepairUser:     {Roles: []string{models.RoleAdmin}},
	OpRecordAttempt:  {Roles: learnerRoles},
	OpCompleteLesson: {Roles: learnerRoles},
	OpViewProgress:   {},
	OpExportProgress: {Roles: []string{models.RoleTeacher, models.RoleAdmin}, AllowSelf: true},
	OpReconcile:      {Roles: []string{models.RoleAdmin}},
}

// PolicyFor returns the policy of op. Unknown operations require admin.
func PolicyFor(op Operation) Policy {
	if p, ok := policies[op]; ok {
		return p
	}
	return Policy{Roles: []string{models.RoleAdmin}}
}
