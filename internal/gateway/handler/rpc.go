package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"projectarchitect/internal/artifact"
	"projectarchitect/internal/pipeline"
)

// Procedures served over the connect protocol. Messages are
// google.protobuf.Struct, so JSON clients post plain objects.
const (
	RunServiceName       = "architect.v1.RunService"
	StartRunProcedure    = "/" + RunServiceName + "/StartRun"
	GetRunProcedure      = "/" + RunServiceName + "/GetRun"
	ListRunsProcedure    = "/" + RunServiceName + "/ListRuns"
	CancelRunProcedure   = "/" + RunServiceName + "/CancelRun"
	GetManifestProcedure = "/" + RunServiceName + "/GetManifest"
)

type unaryFunc = func(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error)

// RegisterRPC mounts the connect handlers on mux.
func (s *Service) RegisterRPC(mux *http.ServeMux) {
	for proc, fn := range map[string]unaryFunc{
		StartRunProcedure:    s.rpcStartRun,
		GetRunProcedure:      s.rpcGetRun,
		ListRunsProcedure:    s.rpcListRuns,
		CancelRunProcedure:   s.rpcCancelRun,
		GetManifestProcedure: s.rpcGetManifest,
	} {
		mux.Handle(proc, connect.NewUnaryHandler(proc, fn))
	}
}

func (s *Service) rpcStartRun(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	id, err := s.runs.Start(ctx, pipeline.Request{
		Description: stringField(req.Msg, "description"),
		ProjectName: stringField(req.Msg, "project_name"),
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return structResponse(map[string]string{"run_id": id})
}

func (s *Service) rpcGetRun(_ context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	snap, ok := s.runs.Get(stringField(req.Msg, "run_id"))
	if !ok {
		return nil, toConnectError(pipeline.ErrRunNotFound)
	}
	return structResponse(snap)
}

func (s *Service) rpcListRuns(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	runs := s.runs.List()
	out := make([]RunSummary, 0, len(runs))
	for _, snap := range runs {
		out = append(out, summarize(snap))
	}
	return structResponse(map[string]any{"runs": out})
}

func (s *Service) rpcCancelRun(_ context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	id := stringField(req.Msg, "run_id")
	if err := s.runs.Cancel(id); err != nil {
		return nil, toConnectError(err)
	}
	snap, _ := s.runs.Get(id)
	return structResponse(summarize(snap))
}

func (s *Service) rpcGetManifest(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	id := stringField(req.Msg, "run_id")
	snap, ok := s.runs.Get(id)
	if !ok {
		return nil, toConnectError(pipeline.ErrRunNotFound)
	}
	if snap.State != pipeline.StateCompleted {
		return nil, connect.NewError(connect.CodeFailedPrecondition, errors.New("run "+id+" is "+string(snap.State)))
	}
	m, err := artifact.LoadManifest(ctx, s.artifacts, id)
	if err != nil {
		return nil, toConnectError(err)
	}
	return structResponse(m)
}

func stringField(msg *structpb.Struct, key string) string {
	if msg == nil {
		return ""
	}
	return strings.TrimSpace(msg.GetFields()[key].GetStringValue())
}

// structResponse converts v through its JSON form into a Struct.
func structResponse(v any) (*connect.Response[structpb.Struct], error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(st), nil
}

func toConnectError(err error) error {
	switch status, _ := statusOf(err); status {
	case http.StatusBadRequest:
		return connect.NewError(connect.CodeInvalidArgument, err)
	case http.StatusNotFound:
		return connect.NewError(connect.CodeNotFound, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}
