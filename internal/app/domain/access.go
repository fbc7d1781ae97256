package domain

// Throughput is a per-key request budget, expressed per minute.
type Throughput struct {
	Key   string `json:"key" bson:"key"`
	Limit int    `json:"limit" bson:"limit"`
}

// EventAccess maps an access credential to the identity allowed to use it.
type EventAccess struct {
	ID          string     `json:"_id" bson:"_id"`
	Name        string     `json:"name" bson:"name"`
	Namespace   string     `json:"namespace" bson:"namespace"`
	Type        string     `json:"type" bson:"type"`
	Group       string     `json:"group" bson:"group"`
	Environment string     `json:"environment" bson:"environment"`
	Platform    string     `json:"platform" bson:"platform"`
	AccessKey   string     `json:"accessKey" bson:"accessKey"`
	Ownership   Ownership  `json:"ownership" bson:"ownership"`
	Throughput  Throughput `json:"throughput" bson:"throughput"`
	Active      bool       `json:"active" bson:"active"`
	Deleted     bool       `json:"deleted" bson:"deleted"`
}

// Connection is one tenant's authorised link to a third-party platform.
type Connection struct {
	ID                     string     `json:"_id" bson:"_id"`
	Key                    string     `json:"key" bson:"key"`
	Name                   string     `json:"name" bson:"name"`
	Group                  string     `json:"group" bson:"group"`
	Environment            string     `json:"environment" bson:"environment"`
	Platform               string     `json:"platform" bson:"platform"`
	PlatformVersion        string     `json:"platformVersion" bson:"platformVersion"`
	ConnectionDefinitionID string     `json:"connectionDefinitionId" bson:"connectionDefinitionId"`
	BaseURL                string     `json:"baseUrl" bson:"baseUrl"`
	Secret                 string     `json:"secret" bson:"secret"`
	Ownership              Ownership  `json:"ownership" bson:"ownership"`
	Throughput             Throughput `json:"throughput" bson:"throughput"`
	Active                 bool       `json:"active" bson:"active"`
	Deleted                bool       `json:"deleted" bson:"deleted"`
}

// ConnectionDefinition describes a platform tenants can connect to.
type ConnectionDefinition struct {
	ID              string   `json:"_id" bson:"_id"`
	Key             string   `json:"key" bson:"key"`
	Name            string   `json:"name" bson:"name"`
	Platform        string   `json:"platform" bson:"platform"`
	PlatformVersion string   `json:"platformVersion" bson:"platformVersion"`
	Description     string   `json:"description" bson:"description"`
	Category        string   `json:"category" bson:"category"`
	Image           string   `json:"image" bson:"image"`
	Tags            []string `json:"tags" bson:"tags"`
	Active          bool     `json:"active" bson:"active"`
	Deleted         bool     `json:"deleted" bson:"deleted"`
}

// FrontendOAuthConnectionDefinition is the client-facing part of a platform OAuth setup.
type FrontendOAuthConnectionDefinition struct {
	ID                  string   `json:"_id" bson:"_id"`
	ConnectionPlatform  string   `json:"connectionPlatform" bson:"connectionPlatform"`
	PlatformRedirectURI string   `json:"platformRedirectUri" bson:"platformRedirectUri"`
	Scopes              []string `json:"scopes" bson:"scopes"`
	Separator           string   `json:"separator,omitempty" bson:"separator,omitempty"`
	Active              bool     `json:"active" bson:"active"`
	Deleted             bool     `json:"deleted" bson:"deleted"`
}

// ConnectionModelDefinition maps one unified action on a common model to a platform call.
type ConnectionModelDefinition struct {
	ID                     string `json:"_id" bson:"_id"`
	ConnectionPlatform     string `json:"connectionPlatform" bson:"connectionPlatform"`
	ConnectionDefinitionID string `json:"connectionDefinitionId" bson:"connectionDefinitionId"`
	PlatformVersion        string `json:"platformVersion" bson:"platformVersion"`
	Title                  string `json:"title" bson:"title"`
	Name                   string `json:"name" bson:"name"`
	Action                 string `json:"action" bson:"action"`
	ActionName             string `json:"actionName" bson:"actionName"`
	Path                   string `json:"path" bson:"path"`
	ModelName              string `json:"modelName,omitempty" bson:"modelName,omitempty"`
	Active                 bool   `json:"active" bson:"active"`
	Deleted                bool   `json:"deleted" bson:"deleted"`
}

// CommonField is one field of a CommonModel.
type CommonField struct {
	Name        string `json:"name" bson:"name"`
	Datatype    string `json:"datatype" bson:"datatype"`
	Required    bool   `json:"required" bson:"required"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
	EnumRef     string `json:"enumRef,omitempty" bson:"enumRef,omitempty"`
	ModelRef    string `json:"modelRef,omitempty" bson:"modelRef,omitempty"`
	Array       bool   `json:"array,omitempty" bson:"array,omitempty"`
}

// CommonModel is a platform-independent schema exposed by unified APIs.
type CommonModel struct {
	ID       string        `json:"_id" bson:"_id"`
	Name     string        `json:"name" bson:"name"`
	Category string        `json:"category" bson:"category"`
	Fields   []CommonField `json:"fields" bson:"fields"`
	Active   bool          `json:"active" bson:"active"`
	Deleted  bool          `json:"deleted" bson:"deleted"`
}

// CommonEnum is a closed set of string values referenced by common models.
type CommonEnum struct {
	ID      string   `json:"_id" bson:"_id"`
	Name    string   `json:"name" bson:"name"`
	Options []string `json:"options" bson:"options"`
	Deleted bool     `json:"deleted" bson:"deleted"`
}

// ReadResponse is one page of a listing together with the total row count.
type ReadResponse[T any] struct {
	Rows  []T   `json:"rows"`
	Total int64 `json:"total"`
	Skip  int64 `json:"skip"`
	Limit int64 `json:"limit"`
}
