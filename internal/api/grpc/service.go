// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package grpc 提供 gRPC 服务端，与 HTTP 推荐接口能力对齐。
package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"ec-recommender/internal/recommender"
)

// ServiceName gRPC 服务全名
const ServiceName = "ecrecommender.v1.Recommender"

// RecommendMethod 完整方法名
const RecommendMethod = "/" + ServiceName + "/Recommend"

// Recommender 处理一条用户输入；*recommender.Service 实现
type Recommender interface {
	Recommend(ctx context.Context, userResponse string) recommender.Reply
}

// RecommenderServer 服务端接口
type RecommenderServer interface {
	Recommend(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
}

// Server gRPC 服务端
type Server struct {
	recommender Recommender
}

// NewServer 创建 Server
func NewServer(r Recommender) *Server {
	return &Server{recommender: r}
}

// Register 注册到 grpc.Server
func (s *Server) Register(grpcServer *grpc.Server) {
	grpcServer.RegisterService(&serviceDesc, s)
}

// Recommend 请求为用户输入，响应为回复 HTML；失败时以状态码返回，消息为通用提示
func (s *Server) Recommend(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	reply := s.recommender.Recommend(ctx, req.GetValue())
	if !reply.Outcome.Failed() {
		return wrapperspb.String(reply.Text), nil
	}
	return nil, status.Error(codeFor(reply.Outcome), reply.Text)
}

func codeFor(o recommender.Outcome) codes.Code {
	switch o {
	case recommender.OutcomeTimeout:
		return codes.DeadlineExceeded
	case recommender.OutcomeCancelled:
		return codes.Canceled
	default:
		return codes.Unavailable
	}
}

func recommendHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RecommenderServer).Recommend(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: RecommendMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RecommenderServer).Recommend(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RecommenderServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Recommend", Handler: recommendHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ecrecommender/v1/recommender.proto",
}

// Client 供调用方（其他服务、集成测试）使用的最小客户端；服务端本身不调用
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient 基于已建立的连接创建 Client
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Recommend 调用远端推荐
func (c *Client) Recommend(ctx context.Context, userResponse string, opts ...grpc.CallOption) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, RecommendMethod, wrapperspb.String(userResponse), out, opts...); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}
