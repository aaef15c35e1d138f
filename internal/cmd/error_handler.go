package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/trackvia-tools/tv-cli/internal/api"
	"github.com/trackvia-tools/tv-cli/internal/config"
	"github.com/trackvia-tools/tv-cli/internal/resolve"
)

// HandleError processes an error and returns a user-friendly message with suggestions
func HandleError(err error) string {
	if err == nil {
		return ""
	}

	var msg strings.Builder

	var apiErr *api.APIError
	var authErr *api.AuthError
	var cfgErr *api.ConfigError
	var unexpected *api.UnexpectedResponseError
	var ambiguous *resolve.AmbiguousError

	switch {
	case errors.Is(err, config.ErrNotConfigured):
		msg.WriteString("No TrackVia credentials configured.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Run: tv auth login --user-key KEY\n")
		msg.WriteString("  - Or set TRACKVIA_USER_KEY\n")

	case errors.As(err, &authErr):
		fmt.Fprintf(&msg, "Authentication failed (%s): %s\n\n", authErr.Op, authErr.Reason)
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Run: tv auth login\n")
		msg.WriteString("  - Verify the username, password and user key\n")

	case errors.As(err, &apiErr):
		fmt.Fprintf(&msg, "API error (HTTP %d): %s\n\n", apiErr.StatusCode, apiErr.Message)
		msg.WriteString(suggestionsForAPIError(apiErr))
		if apiErr.RequestID != "" {
			fmt.Fprintf(&msg, "\nRequest ID: %s\n", apiErr.RequestID)
		}

	case errors.As(err, &unexpected):
		fmt.Fprintf(&msg, "Unexpected response (HTTP %d) from %s %s.\n\n", unexpected.StatusCode, unexpected.Method, unexpected.Endpoint)
		if unexpected.Snippet != "" {
			fmt.Fprintf(&msg, "Body: %s\n\n", unexpected.Snippet)
		}
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Check --base-url points at the TrackVia API\n")
		msg.WriteString("  - Use --debug to see the request\n")

	case errors.As(err, &cfgErr):
		fmt.Fprintf(&msg, "Invalid configuration: %s\n", cfgErr.Error())

	case errors.As(err, &ambiguous):
		fmt.Fprintf(&msg, "Error: %s\n\nPass the view ID instead of its name.\n", err.Error())

	case strings.Contains(err.Error(), "connection refused"):
		msg.WriteString("Connection refused.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Verify the URL: tv auth status\n")
		msg.WriteString("  - Check your network connection\n")

	case strings.Contains(err.Error(), "no such host"):
		msg.WriteString("DNS resolution failed.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Check the --base-url spelling\n")
		msg.WriteString("  - Verify your DNS settings\n")

	case strings.Contains(err.Error(), "certificate"):
		msg.WriteString("TLS certificate error.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Verify the server's SSL certificate\n")
		msg.WriteString("  - Ensure you're using https:// correctly\n")

	default:
		fmt.Fprintf(&msg, "Error: %s\n", err.Error())
	}

	return msg.String()
}

func suggestionsForAPIError(apiErr *api.APIError) string {
	var suggestions strings.Builder
	suggestions.WriteString("Suggestions:\n")

	switch code := apiErr.StatusCode; {
	case api.IsTokenExpired(apiErr):
		suggestions.WriteString("  - The session could not be refreshed\n")
		suggestions.WriteString("  - Run: tv auth login\n")

	case code == 400 || code == 422:
		suggestions.WriteString("  - Check field names against the view structure\n")
		suggestions.WriteString("  - Use --debug to see the full request\n")

	case code == 401:
		suggestions.WriteString("  - Your user key or token may be invalid\n")
		suggestions.WriteString("  - Run: tv auth login\n")

	case code == 403:
		suggestions.WriteString("  - You don't have permission for this view or record\n")
		suggestions.WriteString("  - Check the account's role and view permissions\n")

	case code == 404:
		suggestions.WriteString("  - The view or record doesn't exist\n")
		suggestions.WriteString("  - List views: tv views list\n")

	case code >= 500:
		suggestions.WriteString("  - Server error - not your fault\n")
		suggestions.WriteString("  - Wait and retry\n")

	default:
		suggestions.WriteString("  - Use --debug for more details\n")
	}

	return suggestions.String()
}
