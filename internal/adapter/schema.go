package adapter

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Upstream message schemas of the wallet, transaction and investment
// services. Field numbers follow declaration order in the upstream .proto
// files; only numbers and wire types have to match for messages to decode.

var walletFile = mustFile(&descriptorpb.FileDescriptorProto{
	Name:    proto.String("wallet/wallet.proto"),
	Package: proto.String("wallet"),
	Syntax:  proto.String("proto3"),
	MessageType: []*descriptorpb.DescriptorProto{
		message("GetWalletOptions", scalar("limit", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32)),
		message("UserID", scalar("id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING)),
		message("Wallet",
			scalar("id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("user_id", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("name", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("number", 4, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("balance", 5, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
			scalar("wallet_type_id", 6, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("wallet_type", 7, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("wallet_type_name", 8, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("created_at", 9, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("updated_at", 10, descriptorpb.FieldDescriptorProto_TYPE_STRING),
		),
	},
	Service: []*descriptorpb.ServiceDescriptorProto{
		service("WalletService",
			streamingMethod("GetWallets", ".wallet.GetWalletOptions", ".wallet.Wallet"),
			streamingMethod("GetUserWallets", ".wallet.UserID", ".wallet.Wallet"),
		),
	},
})

var transactionFile = mustFile(&descriptorpb.FileDescriptorProto{
	Name:    proto.String("transaction/transaction.proto"),
	Package: proto.String("transaction"),
	Syntax:  proto.String("proto3"),
	MessageType: []*descriptorpb.DescriptorProto{
		message("GetTransactionOptions", scalar("limit", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32)),
		message("Wallets", repeated(scalar("wallet_id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING))),
		message("Transaction",
			scalar("id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("wallet_id", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("amount", 3, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
			scalar("category_id", 4, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("category_name", 5, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("category_type", 6, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("transaction_date", 7, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("description", 8, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("created_at", 9, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("updated_at", 10, descriptorpb.FieldDescriptorProto_TYPE_STRING),
		),
	},
	Service: []*descriptorpb.ServiceDescriptorProto{
		service("TransactionService",
			streamingMethod("GetTransactions", ".transaction.GetTransactionOptions", ".transaction.Transaction"),
			streamingMethod("GetUserTransactions", ".transaction.Wallets", ".transaction.Transaction"),
		),
	},
})

var investmentFile = mustFile(&descriptorpb.FileDescriptorProto{
	Name:    proto.String("investment/investment.proto"),
	Package: proto.String("investment"),
	Syntax:  proto.String("proto3"),
	MessageType: []*descriptorpb.DescriptorProto{
		message("GetInvestmentOptions", scalar("limit", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32)),
		message("UserID", scalar("id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING)),
		message("AssetCode",
			scalar("code", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("name", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("unit", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("toUSD", 4, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
			scalar("toEUR", 5, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
			scalar("toIDR", 6, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
			scalar("createdAt", 7, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("updatedAt", 8, descriptorpb.FieldDescriptorProto_TYPE_STRING),
		),
		message("Investment",
			scalar("id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("code", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("userID", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("quantity", 4, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
			scalar("initialValuation", 5, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
			scalar("amount", 6, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
			scalar("date", 7, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("description", 8, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			messageRef("assetCode", 9, ".investment.AssetCode"),
			scalar("createdAt", 10, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalar("updatedAt", 11, descriptorpb.FieldDescriptorProto_TYPE_STRING),
		),
	},
	Service: []*descriptorpb.ServiceDescriptorProto{
		service("InvestmentService",
			streamingMethod("GetInvestments", ".investment.GetInvestmentOptions", ".investment.Investment"),
			streamingMethod("GetUserInvestments", ".investment.UserID", ".investment.Investment"),
		),
	},
})

// upstreamMethod is one server-streaming RPC with its message types
type upstreamMethod struct {
	path   string
	input  protoreflect.MessageDescriptor
	output protoreflect.MessageDescriptor
}

// Upstream stream methods
var (
	methodGetWallets          = mustMethod(walletFile, "WalletService", "GetWallets")
	methodGetUserWallets      = mustMethod(walletFile, "WalletService", "GetUserWallets")
	methodGetTransactions     = mustMethod(transactionFile, "TransactionService", "GetTransactions")
	methodGetUserTransactions = mustMethod(transactionFile, "TransactionService", "GetUserTransactions")
	methodGetInvestments      = mustMethod(investmentFile, "InvestmentService", "GetInvestments")
	methodGetUserInvestments  = mustMethod(investmentFile, "InvestmentService", "GetUserInvestments")
)

func mustFile(fd *descriptorpb.FileDescriptorProto) protoreflect.FileDescriptor {
	file, err := protodesc.NewFile(fd, nil)
	if err != nil {
		panic(fmt.Sprintf("adapter: invalid schema %s: %v", fd.GetName(), err))
	}
	return file
}

func mustMethod(file protoreflect.FileDescriptor, serviceName, methodName string) upstreamMethod {
	svc := file.Services().ByName(protoreflect.Name(serviceName))
	if svc == nil {
		panic(fmt.Sprintf("adapter: service %s not in %s", serviceName, file.Path()))
	}
	method := svc.Methods().ByName(protoreflect.Name(methodName))
	if method == nil {
		panic(fmt.Sprintf("adapter: method %s not in %s", methodName, svc.FullName()))
	}
	return upstreamMethod{
		path:   fmt.Sprintf("/%s/%s", svc.FullName(), method.Name()),
		input:  method.Input(),
		output: method.Output(),
	}
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func scalar(name string, number int32, kind descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   kind.Enum(),
	}
}

func messageRef(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	f := scalar(name, number, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	f.TypeName = proto.String(typeName)
	return f
}

func repeated(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}

func service(name string, methods ...*descriptorpb.MethodDescriptorProto) *descriptorpb.ServiceDescriptorProto {
	return &descriptorpb.ServiceDescriptorProto{Name: proto.String(name), Method: methods}
}

func streamingMethod(name, input, output string) *descriptorpb.MethodDescriptorProto {
	return &descriptorpb.MethodDescriptorProto{
		Name:            proto.String(name),
		InputType:       proto.String(input),
		OutputType:      proto.String(output),
		ServerStreaming: proto.Bool(true),
	}
}
