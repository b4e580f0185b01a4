package models

// Response bodies of the social API.

type UserResponse struct {
	ID              int64   `json:"id"`
	CreatedAt       string  `json:"createdAt"`
	Username        string  `json:"username"`
	Bio             *string `json:"bio"`
	DateOfBirth     *string `json:"dateOfBirth"`
	ProfilePicture  *string `json:"profilePicture"`
	IsYourFollower  bool    `json:"isYourFollower"`
	IsYourFollowing bool    `json:"isYourFollowing"`
	FollowersCount  int     `json:"followersCount"`
	FollowingCount  int     `json:"followingCount"`
	PostsCount      int     `json:"postsCount"`
}

// LocationDTO mirrors the wire object, where either coordinate may be null.
type LocationDTO struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type PostResponse struct {
	ID             int64        `json:"id"`
	AuthorID       int64        `json:"authorId"`
	CreatedAt      string       `json:"createdAt"`
	ContentPicture string       `json:"contentPicture"`
	ContentText    *string      `json:"contentText"`
	Location       *LocationDTO `json:"location"`
	MediaURL       string       `json:"mediaUrl,omitempty"`
}

type CreateUserResponse struct {
	SessionID string `json:"sessionId"`
	UserID    int64  `json:"userId"`
}

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

// Response renders u as seen by a viewer; the flags describe the follow
// relation between the two.
func (u User) Response(isYourFollower, isYourFollowing bool) UserResponse {
	return UserResponse{
		ID:              u.ID,
		CreatedAt:       u.CreatedAt.UTC().Format(timeLayout),
		Username:        u.Username,
		Bio:             nonEmpty(u.Bio),
		DateOfBirth:     nonEmpty(u.DateOfBirth),
		ProfilePicture:  nonEmpty(u.ProfilePicture),
		IsYourFollower:  isYourFollower,
		IsYourFollowing: isYourFollowing,
		FollowersCount:  u.FollowerCount,
		FollowingCount:  u.FollowingCount,
		PostsCount:      u.PostCount,
	}
}

// Response renders p with media already resolved to base64.
func (p Post) Response(media string) PostResponse {
	r := PostResponse{
		ID:             p.ID,
		AuthorID:       p.AuthorID,
		CreatedAt:      p.CreatedAt.UTC().Format(timeLayout),
		ContentPicture: media,
		ContentText:    p.Text,
	}
	if p.Latitude != nil && p.Longitude != nil {
		r.Location = &LocationDTO{Latitude: p.Latitude, Longitude: p.Longitude}
	}
	return r
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
