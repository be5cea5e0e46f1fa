package modelstore

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/edgeorchestra/orchestrator/pkg/clock"
	"github.com/edgeorchestra/orchestrator/pkg/protocol"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

type fakeDownloadStream struct {
	grpc.ServerStream
	ctx  context.Context
	sent []*protocol.ModelChunk
}

func (f *fakeDownloadStream) Send(m *protocol.ModelChunk) error {
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeDownloadStream) Context() context.Context { return f.ctx }

type stubSubmitter struct{}

func (stubSubmitter) SubmitGradients(ctx context.Context, req *protocol.SubmitGradientsRequest) (*protocol.SubmitGradientsResponse, error) {
	return &protocol.SubmitGradientsResponse{Accepted: true}, nil
}

func TestDownloadModelFramesMetadataThenChunks(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	store := New(afero.NewMemMapFs(), fc, time.Hour)

	payload := make([]byte, defaultChunkSize+10)
	for i := range payload {
		payload[i] = byte(i)
	}
	id, err := store.Put(payload)
	require.NoError(t, err)

	svc := NewService(store, stubSubmitter{}, defaultChunkSize)
	stream := &fakeDownloadStream{ctx: context.Background()}

	require.NoError(t, svc.DownloadModel(&protocol.DownloadModelRequest{ModelId: id}, stream))

	require.NotEmpty(t, stream.sent)
	require.NotNil(t, stream.sent[0].Metadata)
	assert.Equal(t, id, stream.sent[0].Metadata.ModelId)
	assert.Equal(t, int64(len(payload)), stream.sent[0].Metadata.Size)
	assert.Equal(t, int64(2), stream.sent[0].Metadata.TotalChunks)

	var reassembled []byte
	for _, m := range stream.sent[1:] {
		require.NotNil(t, m.Chunk)
		reassembled = append(reassembled, m.Chunk.Bytes...)
	}
	assert.Equal(t, payload, reassembled)

	for i, m := range stream.sent[1:] {
		assert.Equal(t, int64(i), m.Chunk.ChunkIndex)
	}
}

type fakeUploadStream struct {
	grpc.ServerStream
	ctx    context.Context
	in     []*protocol.ModelChunk
	pos    int
	closed *protocol.UploadModelResponse
}

func (f *fakeUploadStream) Recv() (*protocol.ModelChunk, error) {
	if f.pos >= len(f.in) {
		return nil, io.EOF
	}
	m := f.in[f.pos]
	f.pos++
	return m, nil
}

func (f *fakeUploadStream) SendAndClose(m *protocol.UploadModelResponse) error {
	f.closed = m
	return nil
}

func (f *fakeUploadStream) Context() context.Context { return f.ctx }

func TestUploadModelReassemblesChunks(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	store := New(afero.NewMemMapFs(), fc, time.Hour)
	svc := NewService(store, stubSubmitter{}, defaultChunkSize)

	payload := []byte("reassembled payload")
	stream := &fakeUploadStream{
		ctx: context.Background(),
		in: []*protocol.ModelChunk{
			{Metadata: &protocol.ModelChunkMetadata{Size: int64(len(payload))}},
			{Chunk: &protocol.ModelChunkData{ChunkIndex: 0, Bytes: payload[:10]}},
			{Chunk: &protocol.ModelChunkData{ChunkIndex: 1, Bytes: payload[10:]}},
		},
	}

	require.NoError(t, svc.UploadModel(stream))
	require.NotNil(t, stream.closed)

	reader, err := store.Open(stream.closed.ModelId)
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}
