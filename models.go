package blog

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserStatus is the lifecycle status of a principal
type UserStatus string

const (
	// UserStatusActive principals can authenticate
	UserStatusActive UserStatus = "active"
	// UserStatusInactive principals are rejected by the gate even
	// when they hold an unexpired token
	UserStatusInactive UserStatus = "inactive"
)

// User is the principal model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	FullName      string     `bun:"full_name" json:"full_name,omitempty"`
	Role          UserRole   `bun:"role,notnull" json:"role"`
	Status        UserStatus `bun:"status,notnull" json:"status"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// IsActive reports whether the principal may pass the gate
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}

// Category groups posts, name and slug are unique
type Category struct {
	bun.BaseModel `bun:"table:categories,alias:cat"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name"`
	Slug          string     `bun:"slug,notnull,unique" json:"slug"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Tag is stored with its normalized (trimmed, lowercased) name
type Tag struct {
	bun.BaseModel `bun:"table:tags,alias:tag"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Post is a blog entry written by a principal
type Post struct {
	bun.BaseModel `bun:"table:posts,alias:pst"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Title         string     `bun:"title,notnull,unique" json:"title"`
	Slug          string     `bun:"slug,notnull,unique" json:"slug"`
	Content       string     `bun:"content" json:"content,omitempty"`
	ImageURL      string     `bun:"image_url" json:"image_url,omitempty"`
	AuthorID      uuid.UUID  `bun:"author_id,notnull,type:uuid" json:"author_id"`
	Author        *User      `bun:"rel:belongs-to,join:author_id=id" json:"author,omitempty"`
	CategoryID    *uuid.UUID `bun:"category_id,nullzero,type:uuid" json:"category_id,omitempty"`
	Category      *Category  `bun:"rel:belongs-to,join:category_id=id" json:"category,omitempty"`
	Tags          []*Tag     `bun:"m2m:post_tags,join:Post=Tag" json:"tags"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// TagNames returns the names of the tags attached to the post
func (p *Post) TagNames() []string {
	out := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		out = append(out, t.Name)
	}
	return out
}

// PostTag is the post/tag join table
type PostTag struct {
	bun.BaseModel `bun:"table:post_tags,alias:ptg"`
	PostID        uuid.UUID `bun:"post_id,pk,type:uuid"`
	Post          *Post     `bun:"rel:belongs-to,join:post_id=id"`
	TagID         uuid.UUID `bun:"tag_id,pk,type:uuid"`
	Tag           *Tag      `bun:"rel:belongs-to,join:tag_id=id"`
}

// PostSummary is the reduced post view returned when content is not requested
type PostSummary struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
	Slug  string    `json:"slug"`
}

// Summary returns the reduced view of the post
func (p *Post) Summary() PostSummary {
	return PostSummary{ID: p.ID, Title: p.Title, Slug: p.Slug}
}
