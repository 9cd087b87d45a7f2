package validators

type RiderRegistrationRequest struct {
	UserID string  `json:"user_id" validate:"required,object_id"`
	Name   string  `json:"name" validate:"required,min=1,max=100"`
	Rating float64 `json:"rating" validate:"omitempty,rating_value"`
}

func ValidateRiderRegistration(req *RiderRegistrationRequest) ValidationErrors {
	return ValidateStruct(req)
}
