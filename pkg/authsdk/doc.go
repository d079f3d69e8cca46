/*
Package authsdk is the Go client for the adminotp service, plus the wire
types and error writers the server shares with it.

# Signing in

Console sign-in is a two step email challenge. The first call always
succeeds for a well-formed address, whether or not an account exists:

	client := authsdk.NewSDKClient("https://admin.example.com")

	if err := client.RequestChallenge(ctx, "ops@example.com"); err != nil {
		// only validation, transport or rate-limit errors end up here
	}

The code delivered by email is then exchanged for a console session:

	session, err := client.VerifyChallenge(ctx, "ops@example.com", code)
	if errors.Is(err, authsdk.ErrInvalidCredentials) {
		// wrong, expired, exhausted or already used code
	}

# Sessions

A Session carries the bearer token returned by the verify call. Sessions
are not refreshed; once ExpiresAt passes every call returns
ErrSessionExpired and the caller must run the challenge again.

	me, err := session.Me(ctx)
	err = session.ChangePassword(ctx, "new-secret", "new-secret")

Sessions are safe for concurrent use.

# Errors

Server errors decode into *APIError. Validation failures additionally carry
per-field messages in APIError.Fields. Use errors.Is against the predefined
values (ErrInvalidCredentials, ErrInvalidToken, ErrRateLimited) to branch.
*/
package authsdk
