package httpcore

import "github.com/latticeiam/aclnet/internal/authconfig"

// ApplyConfig installs an authconfig.Config onto c: the auth policy, and the
// CA bundle path and pool size used for engines built afterwards. The
// cookie_path, max_attempts and timeout_secs fields are not applied. Safe
// to call again on a live context, e.g. from authconfig.Watch. Services
// already cached keep the Engine and Authenticator they were built with;
// the new settings take effect for hosts looked up for the first time
// after the call.
func (c *ClientContext) ApplyConfig(cfg *authconfig.Config) {
	perHost := make(map[string]AuthMethod, len(cfg.Host))
	for host, section := range cfg.Host {
		perHost[host] = AuthMethod(section.Method)
	}

	c.ConfigureAuth(AuthMethod(cfg.Auth.Default), perHost, OAuthOptions{
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		Scopes:       cfg.Auth.Scopes,
		AuthURL:      cfg.Auth.AuthURL,
		TokenURL:     cfg.Auth.TokenURL,
	})

	c.enginesMu.Lock()
	c.engines = make(map[string]*Engine) // force re-creation with new network opts
	c.enginesMu.Unlock()

	c.networkMu.Lock()
	c.networkOpts = EngineOptions{CABundlePath: cfg.Network.CABundlePath, PoolSize: cfg.Network.PoolSize}
	c.networkMu.Unlock()
}
