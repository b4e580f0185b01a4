package models

import "time"

// Identity is the client's last known view of a user.
type Identity struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"displayName"`
	Bio         string    `json:"bio,omitempty"`
	BirthDate   string    `json:"birthDate,omitempty"`
	AvatarBlob  string    `json:"avatarBlob,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`

	IsFollowedByMe bool `json:"isFollowedByMe"`
	IsFollowingMe  bool `json:"isFollowingMe"`

	FollowerCount  int `json:"followerCount"`
	FollowingCount int `json:"followingCount"`
	ContentCount   int `json:"contentCount"`
}

// WithFollow returns a copy with the follow flag set and the follower
// counter moved accordingly. Setting the flag to its current value is a no-op.
func (i Identity) WithFollow(follow bool) Identity {
	if i.IsFollowedByMe == follow {
		return i
	}
	i.IsFollowedByMe = follow
	if follow {
		i.FollowerCount++
	} else {
		i.FollowerCount--
	}
	if i.FollowerCount < 0 {
		i.FollowerCount = 0
	}
	return i
}

// WithFollowing moves the following counter of the viewer's own identity.
func (i Identity) WithFollowing(delta int) Identity {
	i.FollowingCount += delta
	if i.FollowingCount < 0 {
		i.FollowingCount = 0
	}
	return i
}

// ProfileUpdate carries an edit of the viewer's own profile. Avatar is only
// uploaded when non-nil.
type ProfileUpdate struct {
	DisplayName string
	Bio         string
	BirthDate   string
	Avatar      *string
}
