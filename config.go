package multitoken

const (
	// DefaultResetTokenExpiryHours validity window of a reset token
	DefaultResetTokenExpiryHours = 24
	// DefaultAuthHeaderKeyword scheme expected in the Authorization header
	DefaultAuthHeaderKeyword = "Token"
)

// Config holds auth options
type Config interface {
	GetResetTokenExpiryHours() int
	GetEnableSuperuserLogin() bool
	GetAuthHeaderKeyword() string
}

// Options is the default Config implementation
type Options struct {
	ResetTokenExpiryHours int    `mapstructure:"reset_token_expiry_hours" json:"reset_token_expiry_hours"`
	EnableSuperuserLogin  bool   `mapstructure:"enable_superuser_login" json:"enable_superuser_login"`
	AuthHeaderKeyword     string `mapstructure:"auth_header_keyword" json:"auth_header_keyword"`
}

// DefaultOptions returns 24 hour reset tokens, superuser login enabled and
// the "Token" header keyword
func DefaultOptions() Options {
	return Options{
		ResetTokenExpiryHours: DefaultResetTokenExpiryHours,
		EnableSuperuserLogin:  true,
		AuthHeaderKeyword:     DefaultAuthHeaderKeyword,
	}
}

func (o Options) GetResetTokenExpiryHours() int {
	if o.ResetTokenExpiryHours <= 0 {
		return DefaultResetTokenExpiryHours
	}
	return o.ResetTokenExpiryHours
}

func (o Options) GetEnableSuperuserLogin() bool {
	return o.EnableSuperuserLogin
}

func (o Options) GetAuthHeaderKeyword() string {
	if o.AuthHeaderKeyword == "" {
		return DefaultAuthHeaderKeyword
	}
	return o.AuthHeaderKeyword
}

var _ Config = Options{}
