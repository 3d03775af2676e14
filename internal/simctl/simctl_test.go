package simctl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cochaviz/simfarm/internal/device"
	"github.com/cochaviz/simfarm/internal/platform"
)

const listOutput = `{
  "devices": {
    "com.apple.CoreSimulator.SimRuntime.iOS-17-0": [
      {
        "udid": "AAAA-1111",
        "name": "iPhone-Test",
        "state": "Shutdown",
        "isAvailable": true
      },
      {
        "udid": "BBBB-2222",
        "name": "iPhone-Test",
        "state": "Booted",
        "isAvailable": true,
        "lastBootedAt": "2026-08-30T10:00:00Z"
      },
      {
        "udid": "CCCC-3333",
        "name": "Broken Device",
        "state": "Shutdown",
        "isAvailable": false
      }
    ],
    "com.apple.CoreSimulator.SimRuntime.tvOS-17-0": [
      {
        "udid": "DDDD-4444",
        "name": "Apple TV",
        "state": "Shutdown",
        "isAvailable": true
      }
    ]
  }
}`

// fakeRunner replays canned responses keyed by the leading simctl verb.
type fakeRunner struct {
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, strings.Join(args, " "))
	if len(args) < 2 || args[0] != "simctl" {
		return nil, fmt.Errorf("unexpected invocation %s %v", name, args)
	}
	verb := args[1]
	output := []byte(f.responses[verb])
	if err := f.errs[verb]; err != nil {
		return output, err
	}
	return output, nil
}

func newFakeClient(f *fakeRunner) *Client {
	return &Client{run: f.run}
}

func TestDevicesWithPropertiesFiltersAndNormalizes(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{"list": listOutput}}
	client := newFakeClient(runner)

	descriptors, err := client.DevicesWithProperties(context.Background(), device.Query{
		Name:      "iPhone-Test",
		OSVersion: "17.0",
	})
	if err != nil {
		t.Fatalf("enumerate returned error: %v", err)
	}
	if len(descriptors) != 2 {
		t.Fatalf("expected 2 matching devices, got %d: %#v", len(descriptors), descriptors)
	}
	for _, d := range descriptors {
		if d.ID == "" {
			t.Fatal("udid must be normalized into the ID field")
		}
		if d.Platform != platform.IOS || d.OSVersion != "17.0" {
			t.Fatalf("runtime not decoded: %#v", d)
		}
	}
	if descriptors[0].ID == "CCCC-3333" || descriptors[1].ID == "CCCC-3333" {
		t.Fatal("unavailable devices must be excluded")
	}
}

func TestDevicesWithPropertiesEmptyQueryListsAll(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{"list": listOutput}}
	client := newFakeClient(runner)

	descriptors, err := client.DevicesWithProperties(context.Background(), device.Query{})
	if err != nil {
		t.Fatalf("enumerate returned error: %v", err)
	}
	if len(descriptors) != 3 {
		t.Fatalf("expected 3 available devices, got %d", len(descriptors))
	}
}

func TestCreateDeviceDerivesIdentifiers(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{"create": "EEEE-5555\n"}}
	client := newFakeClient(runner)

	descriptor, err := client.CreateDeviceWithProperties(context.Background(), device.Query{
		Name:      "iPhone 15 Pro",
		Platform:  platform.MustParse("ios"),
		OSVersion: "17.0",
	})
	if err != nil {
		t.Fatalf("create returned error: %v", err)
	}
	if descriptor.ID != "EEEE-5555" {
		t.Fatalf("expected trimmed udid, got %q", descriptor.ID)
	}

	want := "simctl create iPhone 15 Pro com.apple.CoreSimulator.SimDeviceType.iPhone-15-Pro com.apple.CoreSimulator.SimRuntime.iOS-17-0"
	if runner.calls[0] != want {
		t.Fatalf("unexpected create invocation:\n got %q\nwant %q", runner.calls[0], want)
	}
}

func TestCreateDeviceRequiresNameAndVersion(t *testing.T) {
	client := newFakeClient(&fakeRunner{})

	if _, err := client.CreateDeviceWithProperties(context.Background(), device.Query{OSVersion: "17.0"}); err == nil {
		t.Fatal("expected error for missing name")
	}
	if _, err := client.CreateDeviceWithProperties(context.Background(), device.Query{Name: "iPhone-Test"}); err == nil {
		t.Fatal("expected error for missing os version")
	}
}

func TestBootReportsColdForNeverBootedDevice(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{"list": listOutput}}
	client := newFakeClient(runner)

	cold, err := client.Boot(context.Background(), "AAAA-1111")
	if err != nil {
		t.Fatalf("boot returned error: %v", err)
	}
	if !cold {
		t.Fatal("device without lastBootedAt must report a cold boot")
	}
}

func TestBootToleratesAlreadyBooted(t *testing.T) {
	runner := &fakeRunner{
		responses: map[string]string{
			"list": listOutput,
			"boot": "Unable to boot device in current state: Booted",
		},
		errs: map[string]error{"boot": errors.New("exit status 149")},
	}
	client := newFakeClient(runner)

	cold, err := client.Boot(context.Background(), "BBBB-2222")
	if err != nil {
		t.Fatalf("boot of an already-booted device must succeed, got %v", err)
	}
	if cold {
		t.Fatal("resume must not be reported as a cold boot")
	}
}

func TestBootSurfacesRealFailures(t *testing.T) {
	runner := &fakeRunner{
		responses: map[string]string{
			"list": listOutput,
			"boot": "Invalid device state",
		},
		errs: map[string]error{"boot": errors.New("exit status 164")},
	}
	client := newFakeClient(runner)

	if _, err := client.Boot(context.Background(), "AAAA-1111"); err == nil {
		t.Fatal("expected boot failure to surface")
	}
}

func TestLaunchParsesPid(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{"launch": "com.example.app: 1234\n"}}
	client := newFakeClient(runner)

	pid, err := client.Launch(context.Background(), "AAAA-1111", "com.example.app", []string{"-verbose"})
	if err != nil {
		t.Fatalf("launch returned error: %v", err)
	}
	if pid != 1234 {
		t.Fatalf("expected pid 1234, got %d", pid)
	}
	if got := runner.calls[0]; got != "simctl launch AAAA-1111 com.example.app -verbose" {
		t.Fatalf("unexpected launch invocation %q", got)
	}
}

func TestLaunchRejectsOutputWithoutPid(t *testing.T) {
	runner := &fakeRunner{responses: map[string]string{"launch": "something unexpected"}}
	client := newFakeClient(runner)

	if _, err := client.Launch(context.Background(), "AAAA-1111", "com.example.app", nil); err == nil {
		t.Fatal("expected error for unparseable launch output")
	}
}

func TestShutdownToleratesAlreadyShutdown(t *testing.T) {
	runner := &fakeRunner{
		responses: map[string]string{"shutdown": "Unable to shutdown device in current state: Shutdown"},
		errs:      map[string]error{"shutdown": errors.New("exit status 149")},
	}
	client := newFakeClient(runner)

	if err := client.Shutdown(context.Background(), "AAAA-1111"); err != nil {
		t.Fatalf("shutdown of a stopped device must succeed, got %v", err)
	}
}

func TestSetPermissionsGrantsEachService(t *testing.T) {
	runner := &fakeRunner{}
	client := newFakeClient(runner)

	err := client.SetPermissions(context.Background(), "AAAA-1111", "com.example.app", []string{"camera", "location"})
	if err != nil {
		t.Fatalf("set permissions returned error: %v", err)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("expected one grant per service, got %v", runner.calls)
	}
	if runner.calls[0] != "simctl privacy AAAA-1111 grant camera com.example.app" {
		t.Fatalf("unexpected privacy invocation %q", runner.calls[0])
	}
}

func TestParseRuntimeIdentifier(t *testing.T) {
	p, version, ok := parseRuntimeIdentifier("com.apple.CoreSimulator.SimRuntime.iOS-16-4")
	if !ok || p != platform.IOS || version != "16.4" {
		t.Fatalf("unexpected parse result: %v %q %v", p, version, ok)
	}

	if _, _, ok := parseRuntimeIdentifier("com.example.NotARuntime.iOS-16-4"); ok {
		t.Fatal("foreign identifiers must be rejected")
	}
	if _, _, ok := parseRuntimeIdentifier("com.apple.CoreSimulator.SimRuntime.Haiku-1-0"); ok {
		t.Fatal("unknown platforms must be rejected")
	}
}
