package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Profile struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         primitive.ObjectID `bson:"user" json:"-"`
	User           *UserSummary       `bson:"-" json:"user,omitempty"` // populated on read only
	Company        string             `bson:"company,omitempty" json:"company,omitempty"`
	Website        string             `bson:"website,omitempty" json:"website,omitempty"`
	Location       string             `bson:"location,omitempty" json:"location,omitempty"`
	Status         string             `bson:"status" json:"status"`
	Skills         []string           `bson:"skills" json:"skills"`
	Bio            string             `bson:"bio,omitempty" json:"bio,omitempty"`
	GitHubUsername string             `bson:"githubusername,omitempty" json:"githubusername,omitempty"`
	Experience     []Experience       `bson:"experience" json:"experience"`
	Education      []Education        `bson:"education" json:"education"`
	Social         Social             `bson:"social" json:"social"`
	Date           time.Time          `bson:"date" json:"date"`
}

type Social struct {
	YouTube   string `bson:"youtube,omitempty" json:"youtube,omitempty"`
	Twitter   string `bson:"twitter,omitempty" json:"twitter,omitempty"`
	Facebook  string `bson:"facebook,omitempty" json:"facebook,omitempty"`
	LinkedIn  string `bson:"linkedin,omitempty" json:"linkedin,omitempty"`
	Instagram string `bson:"instagram,omitempty" json:"instagram,omitempty"`
}

type Experience struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Company     string             `bson:"company" json:"company"`
	Location    string             `bson:"location,omitempty" json:"location,omitempty"`
	From        time.Time          `bson:"from" json:"from"`
	To          *time.Time         `bson:"to,omitempty" json:"to,omitempty"`
	Current     bool               `bson:"current" json:"current"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
}

type Education struct {
	ID           primitive.ObjectID `bson:"_id" json:"id"`
	School       string             `bson:"school" json:"school"`
	Degree       string             `bson:"degree" json:"degree"`
	FieldOfStudy string             `bson:"fieldofstudy" json:"fieldofstudy"`
	From         time.Time          `bson:"from" json:"from"`
	To           *time.Time         `bson:"to,omitempty" json:"to,omitempty"`
	Current      bool               `bson:"current" json:"current"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
}

// ProfileUpdate is a sparse profile change: nil fields are left untouched.
type ProfileUpdate struct {
	Company        *string
	Website        *string
	Location       *string
	Status         *string
	Skills         []string
	Bio            *string
	GitHubUsername *string
	YouTube        *string
	Twitter        *string
	Facebook       *string
	LinkedIn       *string
	Instagram      *string
}

// Fields returns the bson paths and values the update sets, keyed the way
// they are stored, so a document store can apply it with $set.
func (u ProfileUpdate) Fields() map[string]interface{} {
	out := map[string]interface{}{}
	put := func(key string, v *string) {
		if v != nil {
			out[key] = *v
		}
	}
	put("company", u.Company)
	put("website", u.Website)
	put("location", u.Location)
	put("status", u.Status)
	put("bio", u.Bio)
	put("githubusername", u.GitHubUsername)
	put("social.youtube", u.YouTube)
	put("social.twitter", u.Twitter)
	put("social.facebook", u.Facebook)
	put("social.linkedin", u.LinkedIn)
	put("social.instagram", u.Instagram)
	if u.Skills != nil {
		out["skills"] = u.Skills
	}
	return out
}

// Apply performs the same change as Fields on an in-memory profile.
func (u ProfileUpdate) Apply(p *Profile) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&p.Company, u.Company)
	set(&p.Website, u.Website)
	set(&p.Location, u.Location)
	set(&p.Status, u.Status)
	set(&p.Bio, u.Bio)
	set(&p.GitHubUsername, u.GitHubUsername)
	set(&p.Social.YouTube, u.YouTube)
	set(&p.Social.Twitter, u.Twitter)
	set(&p.Social.Facebook, u.Facebook)
	set(&p.Social.LinkedIn, u.LinkedIn)
	set(&p.Social.Instagram, u.Instagram)
	if u.Skills != nil {
		p.Skills = u.Skills
	}
}

// SplitSkills turns "go, mongo ,,react" into [go mongo react].
func SplitSkills(raw string) []string {
	parts := strings.Split(raw, ",")
	skills := make([]string, 0, len(parts))
	for _, s := range parts {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}
	return skills
}

func (p *Profile) AddExperience(exp Experience) {
	p.Experience = append([]Experience{exp}, p.Experience...)
}

func (p *Profile) AddEducation(edu Education) {
	p.Education = append([]Education{edu}, p.Education...)
}

// ExperienceIndex reports the position of the entry with the given id.
func (p *Profile) ExperienceIndex(id primitive.ObjectID) (int, bool) {
	for i := range p.Experience {
		if p.Experience[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

func (p *Profile) EducationIndex(id primitive.ObjectID) (int, bool) {
	for i := range p.Education {
		if p.Education[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

// RemoveExperience deletes the entry with id and reports whether it existed.
func (p *Profile) RemoveExperience(id primitive.ObjectID) bool {
	i, ok := p.ExperienceIndex(id)
	if !ok {
		return false
	}
	p.Experience = append(p.Experience[:i], p.Experience[i+1:]...)
	return true
}

func (p *Profile) RemoveEducation(id primitive.ObjectID) bool {
	i, ok := p.EducationIndex(id)
	if !ok {
		return false
	}
	p.Education = append(p.Education[:i], p.Education[i+1:]...)
	return true
}
