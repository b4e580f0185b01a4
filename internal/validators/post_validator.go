package validators

import "feedsync/internal/models"

type NewPostRequest struct {
	ContentText    *string             `json:"contentText,omitempty" binding:"omitempty,max=1000"`
	ContentPicture string              `json:"contentPicture" binding:"required,base64"`
	Location       *models.LocationDTO `json:"location,omitempty"`
}
