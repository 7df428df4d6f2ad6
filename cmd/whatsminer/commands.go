package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/benmeehan/whatsminer-cli/internal/constants"
	"github.com/benmeehan/whatsminer-cli/internal/models"
	"github.com/benmeehan/whatsminer-cli/internal/params"
	"github.com/benmeehan/whatsminer-cli/internal/services"
)

// cmdGetSalt queries get.device.info and prints the response and the salt.
func (a *App) cmdGetSalt(ctx context.Context, svc *services.MinerService, args []string) int {
	fs := flag.NewFlagSet("get-salt", flag.ContinueOnError)
	fs.SetOutput(a.Stderr)
	param := fs.String("param", constants.ParamSalt, "Parameter for get.device.info")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitConfig
	}

	salt, resp, err := svc.GetSaltWithParam(ctx, *param)
	if err != nil && !errors.Is(err, services.ErrSaltNotFound) {
		a.logger.Error().Err(err).Msg("get-salt failed")
		fmt.Fprintln(a.Stderr, "Error:", err)
		return exitError
	}

	if err := a.printJSON(resp); err != nil {
		fmt.Fprintln(a.Stderr, "Error:", err)
		return exitError
	}
	if salt != "" {
		fmt.Fprintln(a.Stdout, "\nExtracted salt:", salt)
	}
	return exitOK
}

// callOptions holds the flags of the call subcommand.
type callOptions struct {
	param        optionalString
	paramJSON    optionalString
	paramFile    optionalString
	salt         optionalString
	ts           optionalInt64
	showRequest  bool
	saveResponse string
}

func newCallFlagSet(opts *callOptions, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Var(&opts.param, "param", "Scalar param value (int/float/bool/null/string)")
	fs.Var(&opts.paramJSON, "param-json", "Param as a JSON document")
	fs.Var(&opts.paramFile, "param-file", "Param from a JSON file")
	fs.Var(&opts.salt, "salt", "Salt from get.device.info (fetched automatically for set.* when omitted)")
	fs.Var(&opts.ts, "ts", "Unix timestamp used for token generation")
	fs.BoolVar(&opts.showRequest, "show-request", false, "Print the request before sending it")
	fs.StringVar(&opts.saveResponse, "save-response", "", "Save the response JSON to a file")
	return fs
}

// cmdCall sends an arbitrary API command. For set.* commands without --salt
// the salt is fetched from the miner first.
func (a *App) cmdCall(ctx context.Context, svc *services.MinerService, args []string) int {
	opts := &callOptions{}
	cmd, err := parseWithPositional(newCallFlagSet(opts, a.Stderr), args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(a.Stderr, "Error:", err)
		return exitConfig
	}

	param, err := params.Resolve(opts.param.value, opts.paramJSON.value, opts.paramFile.value, a.fileClient)
	if err != nil {
		fmt.Fprintln(a.Stderr, "Error:", err)
		return exitError
	}

	salt := opts.salt.value
	if services.IsMutating(cmd) && (salt == nil || *salt == "") {
		a.logger.Info().Msg("Fetching salt from get.device.info ...")
		fetched, _, err := svc.GetSalt(ctx)
		switch {
		case err == nil:
			salt = &fetched
			a.logger.Info().Str("salt", fetched).Msg("Obtained salt")
		case errors.Is(err, services.ErrSaltNotFound):
			a.logger.Warn().Msg("Could not obtain salt automatically; please supply --salt")
		default:
			return a.callFailed(err)
		}
	}

	req, err := svc.Prepare(cmd, param, salt, opts.ts.value)
	if err != nil {
		return a.callFailed(err)
	}

	if opts.showRequest {
		if err := a.printRequest(req); err != nil {
			return a.callFailed(err)
		}
	}

	resp, err := svc.Send(ctx, req)
	if err != nil {
		return a.callFailed(err)
	}

	if err := a.printJSON(resp); err != nil {
		return a.callFailed(err)
	}

	if opts.saveResponse != "" {
		if err := a.fileClient.WriteJsonFile(opts.saveResponse, resp); err != nil {
			return a.callFailed(fmt.Errorf("failed to save response: %w", err))
		}
		a.logger.Info().Str("path", opts.saveResponse).Msg("Saved response")
	}

	return exitOK
}

func (a *App) callFailed(err error) int {
	fmt.Fprintln(a.Stderr, "Error while calling API:", err)
	return exitError
}

// parseWithPositional accepts the command name before or after the flags.
func parseWithPositional(fs *flag.FlagSet, args []string) (string, error) {
	var cmd string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	if err := fs.Parse(args); err != nil {
		return "", err
	}

	rest := fs.Args()
	if cmd == "" {
		if len(rest) == 0 {
			return "", errors.New("missing command name, e.g. get.device.info")
		}
		cmd, rest = rest[0], rest[1:]
	}
	if len(rest) > 0 {
		return "", fmt.Errorf("unexpected arguments: %s", strings.Join(rest, " "))
	}
	return cmd, nil
}

// printJSON writes the response indented, keeping the firmware's key order.
func (a *App) printJSON(resp models.Response) error {
	out, err := resp.Indent()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.Stdout, string(out))
	return err
}

// printRequest shows the exact request that is about to be sent.
func (a *App) printRequest(req *models.Request) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(req); err != nil {
		return err
	}

	fmt.Fprintln(a.Stdout, "=== Request preview ===")
	fmt.Fprint(a.Stdout, buf.String())
	fmt.Fprintln(a.Stdout, "=======================")
	return nil
}
