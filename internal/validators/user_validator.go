package validators

type UpdateUserRequest struct {
	Username    string  `json:"username" binding:"required,min=1,max=64"`
	Bio         *string `json:"bio,omitempty" binding:"omitempty,max=255"`
	DateOfBirth *string `json:"dateOfBirth,omitempty" binding:"omitempty,datetime=2006-01-02"`
}

type UpdateImageRequest struct {
	Base64 string `json:"base64" binding:"required,base64"`
}
