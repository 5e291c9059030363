package driver

import "bus-tracker/internal/tracking-service/core/domain/model"

type IAuthService interface {
	Authenticate(tokenString string) (model.Principal, error)
}
