package gateway

import (
	"fmt"
	"net/http"
)

// Operation names one logical backend call.
type Operation string

const (
	OpCheckUserExists        Operation = "check_user_exists"
	OpUserData               Operation = "user_data"
	OpPaymentData            Operation = "payment_data"
	OpDueTo                  Operation = "due_to"
	OpNicknameExists         Operation = "nickname_exists"
	OpYookassaLink           Operation = "yookassa_link"
	OpAddUser                Operation = "add_user"
	OpActivateSubscription   Operation = "activate_subscription"
	OpDeactivateSubscription Operation = "deactivate_subscription"
	OpUpdateProfile          Operation = "update_profile"
)

// Operations lists every operation the client knows how to issue.
var Operations = []Operation{
	OpCheckUserExists,
	OpUserData,
	OpPaymentData,
	OpDueTo,
	OpNicknameExists,
	OpYookassaLink,
	OpAddUser,
	OpActivateSubscription,
	OpDeactivateSubscription,
	OpUpdateProfile,
}

type route struct {
	method string
	path   string
	// anySuccess accepts every 2xx status instead of exactly 200.
	anySuccess bool
	// internal reports every failure as a 500 regardless of the upstream status.
	internal bool
}

var routes = map[Operation]route{
	OpCheckUserExists:        {method: http.MethodGet, path: "/api/users"},
	OpUserData:               {method: http.MethodGet, path: "/api/users"},
	OpPaymentData:            {method: http.MethodGet, path: "/api/payment_data"},
	OpDueTo:                  {method: http.MethodGet, path: "/api/due_to"},
	OpNicknameExists:         {method: http.MethodGet, path: "/api/nicknames"},
	OpYookassaLink:           {method: http.MethodGet, path: "/api/yookassa_link", internal: true},
	OpAddUser:                {method: http.MethodPost, path: "/api/users"},
	OpActivateSubscription:   {method: http.MethodPost, path: "/api/toggle_sub"},
	OpDeactivateSubscription: {method: http.MethodPost, path: "/api/toggle_sub"},
	OpUpdateProfile:          {method: http.MethodPut, path: "/api/update_profile", anySuccess: true},
}

func (r route) accepts(status int) bool {
	if r.anySuccess {
		return status >= 200 && status < 300
	}
	return status == http.StatusOK
}

// ParseOperation resolves an operation by name and fails on unknown names.
func ParseOperation(name string) (Operation, error) {
	op := Operation(name)
	if _, ok := routes[op]; !ok {
		return "", fmt.Errorf("gateway: unknown operation %q", name)
	}
	return op, nil
}

// checkRoutes verifies that every declared operation has a route.
func checkRoutes() error {
	for _, op := range Operations {
		if _, ok := routes[op]; !ok {
			return fmt.Errorf("gateway: operation %q has no route", op)
		}
	}
	if len(routes) != len(Operations) {
		return fmt.Errorf("gateway: %d routes for %d operations", len(routes), len(Operations))
	}
	return nil
}
