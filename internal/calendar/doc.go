// Package calendar provides a client for the Google Calendar API.
//
// The client covers what meeting scheduling needs: free/busy queries that
// produce an availability.BusyMap, and creating, reading, patching, listing
// and deleting events, optionally with a Google Meet conference attached.
//
// Example usage:
//
//	httpClient := google.NewHTTPClient(manager.TokenSource(ctx, email), limiter)
//	client, err := calendar.NewClient(ctx, email, option.WithHTTPClient(httpClient))
//	if err != nil {
//	    return err
//	}
//
//	fb, err := client.QueryFreeBusy(ctx, window, []string{email, "bob@example.com"})
package calendar
