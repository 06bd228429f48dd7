package steamtrade

func validateCredentials(credentials *Credentials) error {
	if credentials == nil || credentials.Username == "" {
		return UsernameEmptyError
	}
	if credentials.Password == "" {
		return PasswordEmptyError
	}

	return nil
}

// validateSecret accepts an empty secret, which means the feature it backs is
// disabled.
func validateSecret(secret string) error {
	if secret == "" {
		return nil
	}

	_, err := decodeSecret(secret)
	return err
}
