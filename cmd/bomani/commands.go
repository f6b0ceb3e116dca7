package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jrsteele09/bomani-client/apiclient"
	"github.com/jrsteele09/bomani-client/auth"
	"github.com/jrsteele09/bomani-client/contact"
	"github.com/jrsteele09/bomani-client/internal/utils"
	"github.com/jrsteele09/bomani-client/listings"
	"github.com/jrsteele09/bomani-client/users"
)

const registeredMsg = "Account created"

// errSilent marks a failure whose message has already been printed
var errSilent = errors.New("failed")

type command struct {
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commandOrder = []string{"login", "logout", "whoami", "register", "listings", "listing", "contact"}

var commands = map[string]command{
	"login":    {summary: "Log in with a username (or email) and password", run: loginCmd},
	"logout":   {summary: "Forget the stored session", run: logoutCmd},
	"whoami":   {summary: "Show the logged in user", run: whoamiCmd},
	"register": {summary: "Create an account", run: registerCmd},
	"listings": {summary: "Browse listings, filtered and sorted", run: listingsCmd},
	"listing":  {summary: "Show one listing and its host contact link", run: listingCmd},
	"contact":  {summary: "Send a message to BomaniHosts", run: contactCmd},
}

var stdout io.Writer = os.Stdout

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func loginCmd(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("login")
	username := fs.String("u", "", "username or email")
	password := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.restore(ctx); err != nil {
		return err
	}

	r := a.manager.Login(ctx, users.Credentials{Username: *username, Password: *password})
	if !r.Success {
		return printFailure(r)
	}
	fmt.Fprintf(stdout, "Logged in as %s\n", a.manager.CurrentUser().Username)
	return nil
}

func logoutCmd(ctx context.Context, a *app, args []string) error {
	if err := newFlagSet("logout").Parse(args); err != nil {
		return err
	}
	a.manager.Logout()
	fmt.Fprintln(stdout, "Logged out")
	return nil
}

func whoamiCmd(ctx context.Context, a *app, args []string) error {
	if err := newFlagSet("whoami").Parse(args); err != nil {
		return err
	}
	if err := a.restore(ctx); err != nil {
		return err
	}

	if !a.manager.IsAuthenticated() {
		fmt.Fprintln(stdout, "Not logged in. Please log in.")
		return errSilent
	}
	// Re-read the profile; a token revoked since restore logs the session out
	if r := a.manager.RefreshUser(ctx); !r.Success {
		return printFailure(r)
	}

	user := a.manager.CurrentUser()
	role := "guest"
	if user.IsHost {
		role = "host"
	}
	fmt.Fprintf(stdout, "%s <%s> (%s)\n", user.Username, user.Email, role)
	if phone := utils.Value(user.Phone); phone != "" {
		fmt.Fprintf(stdout, "Phone: %s\n", phone)
	}
	return nil
}

func registerCmd(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("register")
	req := users.RegistrationRequest{}
	fs.StringVar(&req.Username, "u", "", "username")
	fs.StringVar(&req.Email, "email", "", "email address")
	fs.StringVar(&req.Password, "p", "", "password")
	fs.StringVar(&req.PasswordConfirmation, "p2", "", "password confirmation")
	fs.StringVar(&req.Phone, "phone", "", "phone number, e.g. +254712345678")
	fs.BoolVar(&req.IsHost, "host", false, "register as a host")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.restore(ctx); err != nil {
		return err
	}

	r := a.manager.Register(ctx, req)
	if !r.Success {
		return printFailure(r)
	}
	message, username := registeredMsg, req.Username
	if r.Registration != nil {
		if r.Registration.Message != "" {
			message = r.Registration.Message
		}
		if r.Registration.Username != "" {
			username = r.Registration.Username
		}
	}
	fmt.Fprintf(stdout, "%s. Log in with: bomani login -u %s\n", strings.TrimSuffix(message, "."), username)
	return nil
}

func listingsCmd(_ context.Context, a *app, args []string) error {
	fs := newFlagSet("listings")
	byType := fs.String("type", listings.AllTypes, "property type: all, "+strings.Join(a.catalog.Types(), ", "))
	sortBy := fs.String("sort", string(listings.SortFeatured), "featured, price-low or price-high")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := listings.ParseSortKey(*sortBy)
	if err != nil {
		return err
	}

	records := a.catalog.Browse(*byType, key)
	fmt.Fprintf(stdout, "%d properties available across Kenya\n\n", len(records))
	for _, r := range records {
		star := " "
		if r.Featured {
			star = "*"
		}
		fmt.Fprintf(stdout, "%s %3d  %-36s %-22s KES %6d  %dbd/%dba  %s\n",
			star, r.ID, r.Title, r.Location, r.Price, r.Bedrooms, r.Bathrooms, r.PropertyType)
	}
	return nil
}

func listingCmd(_ context.Context, a *app, args []string) error {
	fs := newFlagSet("listing")
	id := fs.Int64("id", 0, "listing id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := a.catalog.Get(*id)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s\n%s\nKES %d per night, %d bedrooms, %d bathrooms (%s)\n\n",
		r.Title, r.Location, r.Price, r.Bedrooms, r.Bathrooms, r.PropertyType)
	if r.Description != "" {
		fmt.Fprintf(stdout, "%s\n\n", r.Description)
	}
	fmt.Fprintf(stdout, "Amenities: %s\n", strings.Join(r.Amenities, ", "))
	if !r.Available {
		fmt.Fprintln(stdout, "Currently unavailable")
	}
	fmt.Fprintf(stdout, "Host: %s\n", r.HostName)
	if link, err := listings.ContactHostURL(r); err == nil {
		fmt.Fprintf(stdout, "WhatsApp: %s\n", link)
	}
	return nil
}

func contactCmd(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("contact")
	msg := contact.Message{}
	fs.StringVar(&msg.Name, "name", "", "your name")
	fs.StringVar(&msg.Email, "email", "", "your email address")
	fs.StringVar(&msg.Phone, "phone", "", "phone number (optional)")
	fs.StringVar(&msg.Subject, "subject", "", "subject")
	fs.StringVar(&msg.Message, "message", "", "message, at least 10 characters")
	if err := fs.Parse(args); err != nil {
		return err
	}

	receipt, err := a.contact.Submit(ctx, msg)
	if err != nil {
		if apiErr := apiclient.AsError(err); apiErr != nil {
			printMessages(apiErr.Detail, apiErr.Fields)
			return errSilent
		}
		return err
	}
	fmt.Fprintln(stdout, receipt.Message)
	return nil
}

// printFailure renders a failed auth.Result: a banner for the message, then one line per field error
func printFailure(r auth.Result) error {
	msg := r.Message
	switch r.Kind {
	case apiclient.KindNetwork:
		msg = "Unable to reach BomaniHosts. Please check your connection and try again."
	case apiclient.KindNotAuthenticated:
		msg = "Your session has expired. Please log in."
	}
	printMessages(msg, r.Errors)
	return errSilent
}

func printMessages(banner string, fields users.FieldErrors) {
	fmt.Fprintln(os.Stderr, banner)
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, m := range fields[name] {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", name, m)
		}
	}
}
