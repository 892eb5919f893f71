package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Refresh.Codec != nil && s.deps.Refresh.Store != nil
}

func (s Service) Issue(ctx context.Context, subject string, roles []string) IssueResult {
	return RunIssue(ctx, subject, roles, s.deps.Issue)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) RefreshResult {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) Validate(token string) ValidateResult {
	return RunValidate(token, s.deps.Validate)
}

func (s Service) Logout(ctx context.Context, refreshToken string) LogoutResult {
	return RunLogout(ctx, refreshToken, s.deps.Logout)
}

func (s Service) LogoutAll(ctx context.Context, subject string) error {
	return RunLogoutAll(ctx, subject, s.deps.Logout)
}
