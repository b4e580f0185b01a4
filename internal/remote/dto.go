package remote

import (
	"time"

	"feedsync/internal/models"
	"feedsync/internal/validators"
)

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toIdentity(u models.UserResponse) models.Identity {
	return models.Identity{
		ID:             u.ID,
		DisplayName:    u.Username,
		Bio:            deref(u.Bio),
		BirthDate:      deref(u.DateOfBirth),
		AvatarBlob:     deref(u.ProfilePicture),
		CreatedAt:      parseTime(u.CreatedAt),
		IsFollowedByMe: u.IsYourFollowing,
		IsFollowingMe:  u.IsYourFollower,
		FollowerCount:  max(u.FollowersCount, 0),
		FollowingCount: max(u.FollowingCount, 0),
		ContentCount:   u.PostsCount,
	}
}

func toContent(p models.PostResponse) models.ContentItem {
	c := models.ContentItem{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		CreatedAt: parseTime(p.CreatedAt),
		Media:     p.ContentPicture,
		Text:      p.ContentText,
	}
	// half a coordinate pair is dropped
	if p.Location != nil && p.Location.Latitude != nil && p.Location.Longitude != nil {
		c.Location = &models.Location{Latitude: *p.Location.Latitude, Longitude: *p.Location.Longitude}
	}
	return c
}

func fromLocation(l *models.Location) *models.LocationDTO {
	if l == nil {
		return nil
	}
	lat, lng := l.Latitude, l.Longitude
	return &models.LocationDTO{Latitude: &lat, Longitude: &lng}
}

func newPostBody(d models.Draft) validators.NewPostRequest {
	return validators.NewPostRequest{
		ContentText:    d.Text,
		ContentPicture: d.Media,
		Location:       fromLocation(d.Location),
	}
}

func updateUserBody(name, bio, birthDate string) validators.UpdateUserRequest {
	return validators.UpdateUserRequest{
		Username:    name,
		Bio:         optional(bio),
		DateOfBirth: optional(birthDate),
	}
}

func updateImageBody(base64 string) validators.UpdateImageRequest {
	return validators.UpdateImageRequest{Base64: base64}
}
