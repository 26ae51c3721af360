// Package auth supplies credentials for the subscription API.
//
// # Modes
//
// [Anonymous] credentials are an API key read from a local file and can only read public data.
// [Authenticated] credentials are OAuth2 tokens for the destination account and are required to list
// the account's own subscriptions and to subscribe.
//
// # Token lifecycle
//
// [Broker.Obtain] loads the persisted token from a [TokenStore]. A valid token is used as is; an expired
// token with a refresh token is refreshed against the token endpoint without user interaction. Only when no
// usable token exists does the broker run a [ConsentFlow]: [LoopbackConsent] serves the redirect on a local
// listener, [ConsoleConsent] asks the user to paste the code. Every token the broker acquires is saved back
// to the store.
package auth
