package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/jwtgate/store"
)

// IssueFailureKind classifies token issuance failures.
type IssueFailureKind int

const (
	IssueFailureNone IssueFailureKind = iota
	IssueFailureInput
	IssueFailureIssue
	IssueFailureStore
)

// IssueResult carries a freshly minted pair or failure metadata.
type IssueResult struct {
	Failure              IssueFailureKind
	Err                  error
	Subject              string
	JTI                  string
	AccessToken          string
	RefreshToken         string
	AccessTokenExpiresAt time.Time
}

// IssueDeps captures login issuance dependencies.
type IssueDeps struct {
	Codec TokenCodec
	Store store.Store
}

// RunIssue mints an access/refresh pair for subject and registers the
// refresh jti with the store.
func RunIssue(ctx context.Context, subject string, roles []string, deps IssueDeps) IssueResult {
	if subject == "" {
		return IssueResult{Failure: IssueFailureInput, Err: errors.New("subject is required")}
	}

	pair, failure, err := issuePair(ctx, subject, roles, deps.Codec, deps.Store)
	if err != nil {
		kind := IssueFailureIssue
		if failure == pairFailureStore {
			kind = IssueFailureStore
		}
		return IssueResult{Failure: kind, Err: err, Subject: subject}
	}

	return IssueResult{
		Subject:              subject,
		JTI:                  pair.jti,
		AccessToken:          pair.access,
		RefreshToken:         pair.refresh,
		AccessTokenExpiresAt: pair.accessExpiresAt,
	}
}

type issuedPair struct {
	access          string
	accessExpiresAt time.Time
	refresh         string
	jti             string
}

type pairFailure int

const (
	pairFailureNone pairFailure = iota
	pairFailureIssue
	pairFailureStore
)

// issuePair mints both tokens and saves the new refresh record. The refresh
// token is decoded again so the stored jti and expiry are exactly what the
// token carries.
func issuePair(ctx context.Context, subject string, roles []string, codec TokenCodec, st store.Store) (issuedPair, pairFailure, error) {
	access, accessExp, err := codec.IssueAccessTokenWithExpiry(subject, roles)
	if err != nil {
		return issuedPair{}, pairFailureIssue, err
	}
	refresh, err := codec.IssueRefreshToken(subject, roles...)
	if err != nil {
		return issuedPair{}, pairFailureIssue, err
	}
	claims, err := codec.DecodeStrict(refresh)
	if err != nil {
		return issuedPair{}, pairFailureIssue, err
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return issuedPair{}, pairFailureIssue, errors.New("issued refresh token lacks jti or exp")
	}
	if err := st.Save(ctx, claims.ID, claims.Subject, claims.ExpiresAt.Time); err != nil {
		return issuedPair{}, pairFailureStore, err
	}
	return issuedPair{
		access:          access,
		accessExpiresAt: accessExp,
		refresh:         refresh,
		jti:             claims.ID,
	}, pairFailureNone, nil
}
