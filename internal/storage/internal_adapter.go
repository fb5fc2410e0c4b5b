package storage

import (
	"context"
	"time"
)

// InternalAdapter layers the domain-named operations §4.C calls for
// (CreateUser, FindSessionByToken, ...) over the generic Adapter, the
// way the teacher layers its resource-typed `storage.Storage` under
// the SQL-specific `db` package. Date normalization (ISO strings vs.
// epoch millis, per adapter config) happens once here so every caller
// sees time.Time.
type InternalAdapter struct {
	Raw Adapter
}

func New(raw Adapter) *InternalAdapter {
	return &InternalAdapter{Raw: raw}
}

// --- users ---

func (a *InternalAdapter) CreateUser(ctx context.Context, u User) (User, error) {
	rec, err := toRecord(u)
	if err != nil {
		return User{}, err
	}
	created, err := a.Raw.Create(ctx, ModelUser, rec)
	if err != nil {
		return User{}, err
	}
	var out User
	return out, fromRecord(created, &out)
}

func (a *InternalAdapter) FindUserByEmail(ctx context.Context, email string) (User, error) {
	rec, err := a.Raw.FindOne(ctx, Query{Model: ModelUser, Where: []Where{Eq("email", email)}})
	if err != nil {
		return User{}, err
	}
	var out User
	return out, fromRecord(rec, &out)
}

func (a *InternalAdapter) FindUserByPhone(ctx context.Context, phone string) (User, error) {
	rec, err := a.Raw.FindOne(ctx, Query{Model: ModelUser, Where: []Where{Eq("phone_number", phone)}})
	if err != nil {
		return User{}, err
	}
	var out User
	return out, fromRecord(rec, &out)
}

func (a *InternalAdapter) FindUserByUsername(ctx context.Context, username string) (User, error) {
	rec, err := a.Raw.FindOne(ctx, Query{Model: ModelUser, Where: []Where{Eq("username", username)}})
	if err != nil {
		return User{}, err
	}
	var out User
	return out, fromRecord(rec, &out)
}

func (a *InternalAdapter) FindUserByID(ctx context.Context, id string) (User, error) {
	rec, err := a.Raw.FindOne(ctx, Query{Model: ModelUser, Where: []Where{Eq("id", id)}})
	if err != nil {
		return User{}, err
	}
	var out User
	return out, fromRecord(rec, &out)
}

func (a *InternalAdapter) UpdateUser(ctx context.Context, id string, update Record) (User, error) {
	rec, err := a.Raw.Update(ctx, ModelUser, []Where{Eq("id", id)}, update)
	if err != nil {
		return User{}, err
	}
	var out User
	return out, fromRecord(rec, &out)
}

func (a *InternalAdapter) DeleteUser(ctx context.Context, id string) error {
	// cascades: a deleted user never outlives its sessions/accounts/MFA/refresh tokens (§3 invariant).
	for _, model := range []string{ModelSession, ModelAccount, ModelTwoFactor, ModelTrustedDevice, ModelOAuthRefresh, ModelOAuthAccessToken} {
		if _, err := a.Raw.DeleteMany(ctx, model, []Where{Eq("user_id", id)}); err != nil {
			return err
		}
	}
	return a.Raw.Delete(ctx, ModelUser, []Where{Eq("id", id)})
}

// --- accounts ---

func (a *InternalAdapter) LinkAccount(ctx context.Context, acc Account) (Account, error) {
	rec, err := toRecord(acc)
	if err != nil {
		return Account{}, err
	}
	created, err := a.Raw.Create(ctx, ModelAccount, rec)
	if err != nil {
		return Account{}, err
	}
	var out Account
	return out, fromRecord(created, &out)
}

func (a *InternalAdapter) FindAccount(ctx context.Context, providerID, accountID string) (Account, error) {
	rec, err := a.Raw.FindOne(ctx, Query{Model: ModelAccount, Where: []Where{
		Eq("provider_id", providerID),
		Eq("account_id", accountID),
	}})
	if err != nil {
		return Account{}, err
	}
	var out Account
	return out, fromRecord(rec, &out)
}

func (a *InternalAdapter) FindAccountByUserAndProvider(ctx context.Context, userID, providerID string) (Account, error) {
	rec, err := a.Raw.FindOne(ctx, Query{Model: ModelAccount, Where: []Where{
		Eq("user_id", userID),
		Eq("provider_id", providerID),
	}})
	if err != nil {
		return Account{}, err
	}
	var out Account
	return out, fromRecord(rec, &out)
}

func (a *InternalAdapter) UpdateAccount(ctx context.Context, id string, update Record) (Account, error) {
	rec, err := a.Raw.Update(ctx, ModelAccount, []Where{Eq("id", id)}, update)
	if err != nil {
		return Account{}, err
	}
	var out Account
	return out, fromRecord(rec, &out)
}

// --- sessions ---

func (a *InternalAdapter) CreateSession(ctx context.Context, s Session) (Session, error) {
	rec, err := toRecord(s)
	if err != nil {
		return Session{}, err
	}
	created, err := a.Raw.Create(ctx, ModelSession, rec)
	if err != nil {
		return Session{}, err
	}
	var out Session
	return out, fromRecord(created, &out)
}

func (a *InternalAdapter) FindSessionByToken(ctx context.Context, token string) (Session, error) {
	rec, err := a.Raw.FindOne(ctx, Query{Model: ModelSession, Where: []Where{Eq("token", token)}})
	if err != nil {
		return Session{}, err
	}
	var out Session
	return out, fromRecord(rec, &out)
}

func (a *InternalAdapter) FindSessionByID(ctx context.Context, id string) (Session, error) {
	rec, err := a.Raw.FindOne(ctx, Query{Model: ModelSession, Where: []Where{Eq("id", id)}})
	if err != nil {
		return Session{}, err
	}
	var out Session
	return out, fromRecord(rec, &out)
}

func (a *InternalAdapter) UpdateSession(ctx context.Context, id string, update Record) (Session, error) {
	rec, err := a.Raw.Update(ctx, ModelSession, []Where{Eq("id", id)}, update)
	if err != nil {
		return Session{}, err
	}
	var out Session
	return out, fromRecord(rec, &out)
}

func (a *InternalAdapter) DeleteSession(ctx context.Context, id string) error {
	return a.Raw.Delete(ctx, ModelSession, []Where{Eq("id", id)})
}

func (a *InternalAdapter) DeleteSessionsForUser(ctx context.Context, userID string) (int64, error) {
	return a.Raw.DeleteMany(ctx, ModelSession, []Where{Eq("user_id", userID)})
}

// --- two-factor ---

func (a *InternalAdapter) CreateTwoFactor(ctx context.Context, tf TwoFactor) (TwoFactor, error) {
	rec, err := toRecord(tf)
	if err != nil {
		return TwoFactor{}, err
	}
	created, err := a.Raw.Create(ctx, ModelTwoFactor, rec)
	if err != nil {
		return TwoFactor{}, err
	}
	var out TwoFactor
	return out, fromRecord(created, &out)
}

func (a *InternalAdapter) FindTwoFactor(ctx context.Context, userID string) (TwoFactor, error) {
	rec, err := a.Raw.FindOne(ctx, Query{Model: ModelTwoFactor, Where: []Where{Eq("user_id", userID)}})
	if err != nil {
		return TwoFactor{}, err
	}
	var out TwoFactor
	return out, fromRecord(rec, &out)
}

func (a *InternalAdapter) UpdateTwoFactor(ctx context.Context, userID string, update Record) (TwoFactor, error) {
	rec, err := a.Raw.Update(ctx, ModelTwoFactor, []Where{Eq("user_id", userID)}, update)
	if err != nil {
		return TwoFactor{}, err
	}
	var out TwoFactor
	return out, fromRecord(rec, &out)
}

func (a *InternalAdapter) DeleteTwoFactor(ctx context.Context, userID string) error {
	return a.Raw.Delete(ctx, ModelTwoFactor, []Where{Eq("user_id", userID)})
}

// --- trusted devices ---

func (a *InternalAdapter) CreateTrustedDevice(ctx context.Context, d TrustedDevice) (TrustedDevice, error) {
	rec, err := toRecord(d)
	if err != nil {
		return TrustedDevice{}, err
	}
	created, err := a.Raw.Create(ctx, ModelTrustedDevice, rec)
	if err != nil {
		return TrustedDevice{}, err
	}
	var out TrustedDevice
	return out, fromRecord(created, &out)
}

func (a *InternalAdapter) FindTrustedDevice(ctx context.Context, deviceID string) (TrustedDevice, error) {
	rec, err := a.Raw.FindOne(ctx, Query{Model: ModelTrustedDevice, Where: []Where{Eq("device_id", deviceID)}})
	if err != nil {
		return TrustedDevice{}, err
	}
	var out TrustedDevice
	return out, fromRecord(rec, &out)
}

func (a *InternalAdapter) UpdateTrustedDevice(ctx context.Context, deviceID string, update Record) (TrustedDevice, error) {
	rec, err := a.Raw.Update(ctx, ModelTrustedDevice, []Where{Eq("device_id", deviceID)}, update)
	if err != nil {
		return TrustedDevice{}, err
	}
	var out TrustedDevice
	return out, fromRecord(rec, &out)
}

func (a *InternalAdapter) DeleteTrustedDevice(ctx context.Context, deviceID string) error {
	return a.Raw.Delete(ctx, ModelTrustedDevice, []Where{Eq("device_id", deviceID)})
}

// --- oauth clients ---

func (a *InternalAdapter) CreateOAuthClient(ctx context.Context, c OAuthClient) (OAuthClient, error) {
	rec, err := toRecord(c)
	if err != nil {
		return OAuthClient{}, err
	}
	created, err := a.Raw.Create(ctx, ModelOAuthClient, rec)
	if err != nil {
		return OAuthClient{}, err
	}
	var out OAuthClient
	return out, fromRecord(created, &out)
}

func (a *InternalAdapter) FindOAuthClient(ctx context.Context, clientID string) (OAuthClient, error) {
	rec, err := a.Raw.FindOne(ctx, Query{Model: ModelOAuthClient, Where: []Where{Eq("client_id", clientID)}})
	if err != nil {
		return OAuthClient{}, err
	}
	var out OAuthClient
	return out, fromRecord(rec, &out)
}

func (a *InternalAdapter) UpdateOAuthClient(ctx context.Context, clientID string, update Record) (OAuthClient, error) {
	rec, err := a.Raw.Update(ctx, ModelOAuthClient, []Where{Eq("client_id", clientID)}, update)
	if err != nil {
		return OAuthClient{}, err
	}
	var out OAuthClient
	return out, fromRecord(rec, &out)
}

// --- oauth access tokens ---

func (a *InternalAdapter) CreateOAuthAccessToken(ctx context.Context, t OAuthAccessToken) (OAuthAccessToken, error) {
	rec, err := toRecord(t)
	if err != nil {
		return OAuthAccessToken{}, err
	}
	created, err := a.Raw.Create(ctx, ModelOAuthAccessToken, rec)
	if err != nil {
		return OAuthAccessToken{}, err
	}
	var out OAuthAccessToken
	return out, fromRecord(created, &out)
}

func (a *InternalAdapter) FindOAuthAccessToken(ctx context.Context, token string) (OAuthAccessToken, error) {
	rec, err := a.Raw.FindOne(ctx, Query{Model: ModelOAuthAccessToken, Where: []Where{Eq("token", token)}})
	if err != nil {
		return OAuthAccessToken{}, err
	}
	var out OAuthAccessToken
	return out, fromRecord(rec, &out)
}

func (a *InternalAdapter) DeleteOAuthAccessToken(ctx context.Context, token string) error {
	return a.Raw.Delete(ctx, ModelOAuthAccessToken, []Where{Eq("token", token)})
}

func (a *InternalAdapter) DeleteOAuthAccessTokensByRefresh(ctx context.Context, refreshID string) (int64, error) {
	return a.Raw.DeleteMany(ctx, ModelOAuthAccessToken, []Where{Eq("refresh_id", refreshID)})
}

// --- oauth refresh tokens ---

func (a *InternalAdapter) CreateOAuthRefreshToken(ctx context.Context, t OAuthRefreshToken) (OAuthRefreshToken, error) {
	rec, err := toRecord(t)
	if err != nil {
		return OAuthRefreshToken{}, err
	}
	created, err := a.Raw.Create(ctx, ModelOAuthRefresh, rec)
	if err != nil {
		return OAuthRefreshToken{}, err
	}
	var out OAuthRefreshToken
	return out, fromRecord(created, &out)
}

func (a *InternalAdapter) FindOAuthRefreshToken(ctx context.Context, token string) (OAuthRefreshToken, error) {
	rec, err := a.Raw.FindOne(ctx, Query{Model: ModelOAuthRefresh, Where: []Where{Eq("token", token)}})
	if err != nil {
		return OAuthRefreshToken{}, err
	}
	var out OAuthRefreshToken
	return out, fromRecord(rec, &out)
}

func (a *InternalAdapter) RevokeOAuthRefreshChain(ctx context.Context, chainID string, now time.Time) (int64, error) {
	return a.Raw.UpdateMany(ctx, ModelOAuthRefresh, []Where{Eq("chain_id", chainID)}, Record{"revoked_at": now})
}

// --- oauth consents ---

func (a *InternalAdapter) UpsertOAuthConsent(ctx context.Context, c OAuthConsent) (OAuthConsent, error) {
	_, err := a.Raw.FindOne(ctx, Query{Model: ModelOAuthConsent, Where: []Where{
		Eq("client_id", c.ClientID), Eq("user_id", c.UserID),
	}})
	if err != nil {
		rec, err := toRecord(c)
		if err != nil {
			return OAuthConsent{}, err
		}
		created, err := a.Raw.Create(ctx, ModelOAuthConsent, rec)
		if err != nil {
			return OAuthConsent{}, err
		}
		var out OAuthConsent
		return out, fromRecord(created, &out)
	}
	rec, err := a.Raw.Update(ctx, ModelOAuthConsent, []Where{
		Eq("client_id", c.ClientID), Eq("user_id", c.UserID),
	}, Record{"scopes": c.Scopes, "consent_given": c.ConsentGiven, "updated_at": c.UpdatedAt})
	if err != nil {
		return OAuthConsent{}, err
	}
	var out OAuthConsent
	return out, fromRecord(rec, &out)
}

func (a *InternalAdapter) FindOAuthConsent(ctx context.Context, clientID, userID string) (OAuthConsent, error) {
	rec, err := a.Raw.FindOne(ctx, Query{Model: ModelOAuthConsent, Where: []Where{
		Eq("client_id", clientID), Eq("user_id", userID),
	}})
	if err != nil {
		return OAuthConsent{}, err
	}
	var out OAuthConsent
	return out, fromRecord(rec, &out)
}

// --- device codes ---

func (a *InternalAdapter) CreateDeviceCode(ctx context.Context, d DeviceCode) (DeviceCode, error) {
	rec, err := toRecord(d)
	if err != nil {
		return DeviceCode{}, err
	}
	created, err := a.Raw.Create(ctx, ModelDeviceCode, rec)
	if err != nil {
		return DeviceCode{}, err
	}
	var out DeviceCode
	return out, fromRecord(created, &out)
}

func (a *InternalAdapter) FindDeviceCodeByDeviceCode(ctx context.Context, deviceCode string) (DeviceCode, error) {
	rec, err := a.Raw.FindOne(ctx, Query{Model: ModelDeviceCode, Where: []Where{Eq("device_code", deviceCode)}})
	if err != nil {
		return DeviceCode{}, err
	}
	var out DeviceCode
	return out, fromRecord(rec, &out)
}

func (a *InternalAdapter) FindDeviceCodeByUserCode(ctx context.Context, userCode string) (DeviceCode, error) {
	rec, err := a.Raw.FindOne(ctx, Query{Model: ModelDeviceCode, Where: []Where{Eq("user_code", userCode)}})
	if err != nil {
		return DeviceCode{}, err
	}
	var out DeviceCode
	return out, fromRecord(rec, &out)
}

func (a *InternalAdapter) UpdateDeviceCode(ctx context.Context, deviceCode string, update Record) (DeviceCode, error) {
	rec, err := a.Raw.Update(ctx, ModelDeviceCode, []Where{Eq("device_code", deviceCode)}, update)
	if err != nil {
		return DeviceCode{}, err
	}
	var out DeviceCode
	return out, fromRecord(rec, &out)
}

func (a *InternalAdapter) DeleteDeviceCode(ctx context.Context, deviceCode string) error {
	return a.Raw.Delete(ctx, ModelDeviceCode, []Where{Eq("device_code", deviceCode)})
}

// --- ciba requests ---

func (a *InternalAdapter) CreateCibaRequest(ctx context.Context, c CibaRequest) (CibaRequest, error) {
	rec, err := toRecord(c)
	if err != nil {
		return CibaRequest{}, err
	}
	created, err := a.Raw.Create(ctx, ModelCibaRequest, rec)
	if err != nil {
		return CibaRequest{}, err
	}
	var out CibaRequest
	return out, fromRecord(created, &out)
}

func (a *InternalAdapter) FindCibaRequest(ctx context.Context, authReqID string) (CibaRequest, error) {
	rec, err := a.Raw.FindOne(ctx, Query{Model: ModelCibaRequest, Where: []Where{Eq("auth_req_id", authReqID)}})
	if err != nil {
		return CibaRequest{}, err
	}
	var out CibaRequest
	return out, fromRecord(rec, &out)
}

func (a *InternalAdapter) UpdateCibaRequest(ctx context.Context, authReqID string, update Record) (CibaRequest, error) {
	rec, err := a.Raw.Update(ctx, ModelCibaRequest, []Where{Eq("auth_req_id", authReqID)}, update)
	if err != nil {
		return CibaRequest{}, err
	}
	var out CibaRequest
	return out, fromRecord(rec, &out)
}

func (a *InternalAdapter) DeleteCibaRequest(ctx context.Context, authReqID string) error {
	return a.Raw.Delete(ctx, ModelCibaRequest, []Where{Eq("auth_req_id", authReqID)})
}

// --- verifications ---

func (a *InternalAdapter) CreateVerification(ctx context.Context, v Verification) (Verification, error) {
	rec, err := toRecord(v)
	if err != nil {
		return Verification{}, err
	}
	created, err := a.Raw.Create(ctx, ModelVerification, rec)
	if err != nil {
		return Verification{}, err
	}
	var out Verification
	return out, fromRecord(created, &out)
}

func (a *InternalAdapter) FindVerification(ctx context.Context, identifier string) (Verification, error) {
	rec, err := a.Raw.FindOne(ctx, Query{Model: ModelVerification, Where: []Where{Eq("identifier", identifier)}})
	if err != nil {
		return Verification{}, err
	}
	var out Verification
	return out, fromRecord(rec, &out)
}

func (a *InternalAdapter) DeleteVerification(ctx context.Context, identifier string) error {
	return a.Raw.Delete(ctx, ModelVerification, []Where{Eq("identifier", identifier)})
}

// ConsumeVerification atomically finds-then-deletes a verification so
// authorization codes and device codes are single-use: deletion
// precedes token issuance (§3 invariant).
func (a *InternalAdapter) ConsumeVerification(ctx context.Context, identifier string, now time.Time) (Verification, error) {
	v, err := a.FindVerification(ctx, identifier)
	if err != nil {
		return Verification{}, err
	}
	if err := a.DeleteVerification(ctx, identifier); err != nil {
		return Verification{}, err
	}
	if now.After(v.ExpiresAt) {
		return Verification{}, ErrNotFound
	}
	return v, nil
}

// --- garbage collection ---

// GCResult reports how many expired rows were swept, generalizing the
// teacher's storage.GCResult to the richer model this spec owns (see
// SPEC_FULL §3.1).
type GCResult struct {
	Verifications int64
	Sessions      int64
	RefreshTokens int64
	DeviceCodes   int64
	CibaRequests  int64
}

func (g GCResult) IsEmpty() bool {
	return g.Verifications == 0 && g.Sessions == 0 && g.RefreshTokens == 0 && g.DeviceCodes == 0 && g.CibaRequests == 0
}

func (a *InternalAdapter) GarbageCollect(ctx context.Context, now time.Time) (GCResult, error) {
	var res GCResult
	var err error

	if res.Verifications, err = a.Raw.DeleteMany(ctx, ModelVerification, []Where{{Field: "expires_at", Operator: OpLt, Value: now}}); err != nil {
		return res, err
	}
	if res.Sessions, err = a.Raw.DeleteMany(ctx, ModelSession, []Where{{Field: "expires_at", Operator: OpLt, Value: now}}); err != nil {
		return res, err
	}
	if res.RefreshTokens, err = a.Raw.DeleteMany(ctx, ModelOAuthRefresh, []Where{{Field: "expires_at", Operator: OpLt, Value: now}}); err != nil {
		return res, err
	}
	if res.DeviceCodes, err = a.Raw.DeleteMany(ctx, ModelDeviceCode, []Where{{Field: "expires_at", Operator: OpLt, Value: now}}); err != nil {
		return res, err
	}
	if res.CibaRequests, err = a.Raw.DeleteMany(ctx, ModelCibaRequest, []Where{{Field: "expires_at", Operator: OpLt, Value: now}}); err != nil {
		return res, err
	}
	return res, nil
}
