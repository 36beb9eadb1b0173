// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"flag"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	versionKey = "version"
	traceKey   = "trace"
	decodeKey  = "decode"
)

func buildFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("tracedump", flag.ContinueOnError)

	fs.Bool(versionKey, false, "If true, prints version and quits")
	fs.String(traceKey, "", "Path of the trace directory to inspect")
	fs.Bool(decodeKey, false, "If true, decodes each recorded output's status")

	return fs
}

// getViper returns the viper environment for the tracedump binary
func getViper() (*viper.Viper, error) {
	v := viper.New()

	fs := buildFlagSet()
	pflag.CommandLine.AddGoFlagSet(fs)
	pflag.Parse()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	return v, nil
}

type params struct {
	printVersion bool
	traceDir     string
	decode       bool
}

func getParams() (params, error) {
	v, err := getViper()
	if err != nil {
		return params{}, err
	}

	return params{
		printVersion: v.GetBool(versionKey),
		traceDir:     v.GetString(traceKey),
		decode:       v.GetBool(decodeKey),
	}, nil
}
